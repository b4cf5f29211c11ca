// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/model"
	"vyapar-go/internal/service"
)

// 返回给界面的提示文案
const (
	msgUsernameTaken     = "Username already exists."
	msgInvalidLogin      = "Invalid username or password."
	msgUsernameNotFound  = "Username not found"
	msgInvalidResetToken = "Invalid or expired reset token"
	msgPasswordMismatch  = "Passwords do not match!"
	msgEmailFailed       = "Failed to send email. Please try again later."
	msgAssistantDown     = "The assistant is unavailable right now. Please try again."
)

// respond 以统一的 {"code","message","data"} 结构返回 JSON。
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

// respondError 把业务层的哨兵错误映射为 HTTP 状态码与提示文案。
func respondError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	respond(c, status, message, nil)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, msgUsernameTaken
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidLogin
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, msgUsernameNotFound
	case errors.Is(err, service.ErrInvalidResetToken):
		return http.StatusBadRequest, msgInvalidResetToken
	case errors.Is(err, service.ErrPasswordMismatch):
		return http.StatusBadRequest, msgPasswordMismatch
	case errors.Is(err, service.ErrEmailDelivery):
		return http.StatusBadGateway, msgEmailFailed
	case errors.Is(err, service.ErrLLMFailed):
		return http.StatusBadGateway, msgAssistantDown
	case errors.Is(err, service.ErrExtractorUnavailable):
		// 错误信息中带有修复提示
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, service.ErrSearchDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, service.ErrNotPDF):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, service.ErrEmptyDocument):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrMissingCredentials),
		errors.Is(err, service.ErrPasswordTooLong),
		errors.Is(err, service.ErrUnknownPage),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUnknownDocType):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// currentUser 取出 AuthMiddleware 注入的用户。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		respond(c, http.StatusUnauthorized, "unauthenticated", nil)
		return nil, false
	}
	user, ok := v.(*model.User)
	if !ok || user == nil {
		respond(c, http.StatusInternalServerError, "invalid user in context", nil)
		return nil, false
	}
	return user, true
}

// sendPDF 以附件形式返回 PDF，归档地址放在 X-Archive-URL 头中。
func sendPDF(c *gin.Context, pdf *service.GeneratedPDF) {
	c.Header("Content-Disposition", `attachment; filename="`+pdf.FileName+`"`)
	if pdf.URL != "" {
		c.Header("X-Archive-URL", pdf.URL)
	}
	c.Data(http.StatusOK, "application/pdf", pdf.Data)
}
