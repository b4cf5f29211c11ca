package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/service"
	"vyapar-go/pkg/log"
)

// ConversationHandler 处理与对话历史相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversations 处理获取用户对话历史的请求。
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	history, err := h.service.GetConversationHistory(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("GetConversations: failed for user %s, error: %v", user.Username, err)
		respond(c, http.StatusInternalServerError, "Failed to retrieve conversation history", nil)
		return
	}
	respond(c, http.StatusOK, "success", history)
}

// ClearConversations 删除用户的全部对话历史。
func (h *ConversationHandler) ClearConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	deleted, err := h.service.ClearHistory(c.Request.Context(), user)
	if err != nil {
		log.Errorf("ClearConversations: failed for user %s, error: %v", user.Username, err)
		respond(c, http.StatusInternalServerError, "Failed to clear conversation history", nil)
		return
	}
	respond(c, http.StatusOK, "Chat history cleared", gin.H{"deleted": deleted})
}
