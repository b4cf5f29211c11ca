package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/model"
	"vyapar-go/internal/service"
	"vyapar-go/pkg/log"
)

// UserHandler 负责处理注册、登录、登出与个人信息相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "invalid request payload: username and password are required", nil)
		return
	}

	user, err := h.userService.Register(service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		log.Warnf("Register: User registration failed for '%s', error: %v", req.Username, err)
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Registration successful!", user)
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求。
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "invalid request payload: username and password are required", nil)
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		log.Warnf("Login: User authentication failed for '%s', error: %v", req.Username, err)
		respondError(c, err)
		return
	}

	log.Infof("User '%s' logged in successfully", req.Username)
	respond(c, http.StatusOK, "Welcome "+res.User.FirstName+" "+res.User.LastName+"!", gin.H{
		"token":        res.AccessToken,
		"refreshToken": res.RefreshToken,
		"user":         res.User,
		"session":      res.Session,
	})
}

// GetProfile 返回由 AuthMiddleware 注入到上下文中的当前用户。
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "success", user)
}

// Logout 吊销当前 access token 并删除会话。
func (h *UserHandler) Logout(c *gin.Context) {
	tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	if err := h.userService.Logout(c.Request.Context(), tokenString); err != nil {
		log.Error("Logout: Failed to logout", err)
		respond(c, http.StatusInternalServerError, "logout failed", nil)
		return
	}

	if v, ok := c.Get("user"); ok {
		if user, ok := v.(*model.User); ok {
			log.Infof("User '%s' logged out successfully", user.Username)
		}
	}
	respond(c, http.StatusOK, "Logged out", nil)
}
