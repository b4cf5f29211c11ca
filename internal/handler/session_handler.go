package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/service"
)

// SessionHandler 处理页面导航与会话快照相关的请求。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Pages 返回侧边栏的页面列表。
func (h *SessionHandler) Pages(c *gin.Context) {
	respond(c, http.StatusOK, "success", h.sessionService.Pages())
}

// Snapshot 返回当前会话：页面、发票草稿、最近意图与消息缓冲区。
func (h *SessionHandler) Snapshot(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	session, err := h.sessionService.Snapshot(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", session)
}

// SetActiveTabRequest 定义了切换页面的请求体。
type SetActiveTabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

// SetActiveTab 切换当前页面。
func (h *SessionHandler) SetActiveTab(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req SetActiveTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload: tab is required", nil)
		return
	}
	session, err := h.sessionService.SetActiveTab(c.Request.Context(), user, req.Tab)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", session)
}

// Overview 返回概览页的欢迎语与功能卡片。
func (h *SessionHandler) Overview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "success", h.sessionService.Overview(user))
}
