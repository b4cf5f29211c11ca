package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vyapar-go/internal/middleware"
	"vyapar-go/internal/service"
	"vyapar-go/pkg/llm"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理聊天请求，包括阻塞式接口与 WebSocket 流式连接。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
	jwtManager  *token.JWTManager
	revocations middleware.RevocationChecker
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService, jwtManager *token.JWTManager, revocations middleware.RevocationChecker) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
		revocations: revocations,
	}
}

// SendMessageRequest 定义了阻塞式聊天接口的请求体。
type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// SendMessage 处理 POST /chat/messages，返回完整回复与更新后的会话。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload: message is required", nil)
		return
	}

	reply, err := h.chatService.HandleMessage(c.Request.Context(), user, req.Message)
	if err != nil {
		log.Errorf("[ChatHandler] 处理消息失败, user: %s, error: %v", user.Username, err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", reply)
}

// Handle 处理一个传入的 WebSocket 连接，token 通过路径传入。
func (h *ChatHandler) Handle(c *gin.Context) {
	user, claims, ok := middleware.Authenticate(c.Request.Context(), h.jwtManager, h.userService, h.revocations, c.Param("token"))
	if !ok {
		respond(c, http.StatusUnauthorized, "invalid or expired token", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		writer := &chunkWriter{conn: conn}
		_, err = h.chatService.StreamMessage(c.Request.Context(), user, string(message), writer)
		if err != nil {
			log.Errorf("处理流式响应失败: %v", err)
			_, msg := errorStatus(err)
			writeJSON(conn, map[string]string{"error": msg})
		}
		// 出错时也发送 completion 通知
		writeJSON(conn, completionFrame())
	}
}

// chunkWriter 把每个分块包装成 {"chunk": "..."} 后写入连接。
type chunkWriter struct {
	conn *websocket.Conn
}

func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	payload, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, payload)
}

var _ llm.MessageWriter = (*chunkWriter)(nil)

func completionFrame() map[string]interface{} {
	now := time.Now()
	return map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 消息失败: %v", err)
	}
}
