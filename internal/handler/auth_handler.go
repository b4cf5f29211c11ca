package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/service"
	"vyapar-go/pkg/log"
)

// AuthHandler 负责处理刷新 token 与找回密码相关的 API 请求。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 处理刷新 token 的请求。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("RefreshToken: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "invalid request payload: refreshToken is required", nil)
		return
	}

	newAccessToken, newRefreshToken, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		log.Warnf("RefreshToken: Failed to refresh token, error: %v", err)
		respondError(c, err)
		return
	}

	log.Info("Token refreshed successfully")
	respond(c, http.StatusOK, "Token refreshed successfully", gin.H{
		"token":        newAccessToken,
		"refreshToken": newRefreshToken,
	})
}

// ForgotPasswordRequest 定义了找回密码 API 的请求体结构。
type ForgotPasswordRequest struct {
	Username string `json:"username" binding:"required"`
}

// ForgotPassword 签发重置令牌：账号有邮箱时发送邮件，否则在响应中直接返回令牌。
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload: username is required", nil)
		return
	}

	res, err := h.userService.ForgotPassword(c.Request.Context(), req.Username)
	if err != nil {
		log.Warnf("ForgotPassword: failed for '%s', error: %v", req.Username, err)
		respondError(c, err)
		return
	}

	if res.EmailSent {
		respond(c, http.StatusOK, "Password reset link sent to your email.", gin.H{
			"emailSent": true,
			"expiresAt": res.ExpiresAt.Format(time.RFC3339),
		})
		return
	}
	respond(c, http.StatusOK, "No email address on file. Please use this reset token:", gin.H{
		"emailSent": false,
		"token":     res.Token,
		"expiresAt": res.ExpiresAt.Format(time.RFC3339),
	})
}

// ValidateResetToken 处理 GET /auth/password-reset?token=，令牌有效时返回所属用户名。
func (h *AuthHandler) ValidateResetToken(c *gin.Context) {
	resetToken := c.Query("token")
	if resetToken == "" {
		respond(c, http.StatusBadRequest, msgInvalidResetToken, nil)
		return
	}
	user, err := h.userService.ValidateResetToken(resetToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", gin.H{"username": user.Username})
}

// ResetPasswordRequest 定义了重置密码 API 的请求体结构。令牌也可以通过查询参数传入。
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// ResetPassword 兑换重置令牌并更新密码。
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload: newPassword and confirmPassword are required", nil)
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}
	if req.Token == "" {
		respond(c, http.StatusBadRequest, msgInvalidResetToken, nil)
		return
	}

	if err := h.userService.ResetPassword(req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		log.Warnf("ResetPassword: failed, error: %v", err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Password updated successfully! Please login with your new password.", nil)
}
