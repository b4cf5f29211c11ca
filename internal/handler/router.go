package handler

import (
	"github.com/gin-gonic/gin"

	"vyapar-go/internal/middleware"
	"vyapar-go/internal/service"
	"vyapar-go/pkg/token"
)

// RouterDeps 汇总了注册路由所需的服务。
type RouterDeps struct {
	Users         service.UserService
	Sessions      service.SessionService
	Chat          service.ChatService
	Conversations service.ConversationService
	Documents     service.DocumentService
	Invoices      service.InvoiceService
	Legal         service.LegalService
	JWT           *token.JWTManager
	Revocations   middleware.RevocationChecker
	// Limiter 为 nil 时不对认证接口限流
	Limiter       *middleware.LimiterStore
	MaxUploadSize int64
}

// NewRouter 创建路由引擎并注册全部 API。
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	authRequired := middleware.AuthMiddleware(d.JWT, d.Users, d.Revocations)
	limited := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limited = middleware.RateLimit(d.Limiter)
	}

	userHandler := NewUserHandler(d.Users)
	authHandler := NewAuthHandler(d.Users)
	sessionHandler := NewSessionHandler(d.Sessions)
	chatHandler := NewChatHandler(d.Chat, d.Users, d.JWT, d.Revocations)
	conversationHandler := NewConversationHandler(d.Conversations)
	documentHandler := NewDocumentHandler(d.Documents, d.MaxUploadSize)
	searchHandler := NewSearchHandler(d.Documents)
	invoiceHandler := NewInvoiceHandler(d.Invoices)
	legalHandler := NewLegalHandler(d.Legal)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", authHandler.RefreshToken)
			auth.POST("/forgot-password", limited, authHandler.ForgotPassword)
			auth.GET("/password-reset", authHandler.ValidateResetToken)
			auth.POST("/password-reset", limited, authHandler.ResetPassword)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由
			users.POST("/register", limited, userHandler.Register)
			users.POST("/login", limited, userHandler.Login)

			authed := users.Group("/")
			authed.Use(authRequired)
			{
				authed.GET("/me", userHandler.GetProfile)
				authed.POST("/logout", userHandler.Logout)
				authed.GET("/conversation", conversationHandler.GetConversations)
				authed.DELETE("/conversation", conversationHandler.ClearConversations)
			}
		}

		apiV1.GET("/pages", sessionHandler.Pages)

		authedV1 := apiV1.Group("")
		authedV1.Use(authRequired)
		{
			authedV1.GET("/session", sessionHandler.Snapshot)
			authedV1.PUT("/session/tab", sessionHandler.SetActiveTab)
			authedV1.GET("/overview", sessionHandler.Overview)

			authedV1.POST("/chat/messages", chatHandler.SendMessage)

			authedV1.GET("/invoices/draft", invoiceHandler.Draft)
			authedV1.POST("/invoices", invoiceHandler.Generate)

			authedV1.GET("/legal/types", legalHandler.Types)
			authedV1.POST("/legal", legalHandler.Generate)

			authedV1.POST("/documents/explain", documentHandler.Explain)
			authedV1.GET("/documents/search", searchHandler.Search)
		}

		// WebSocket 通过路径中的 token 认证
		apiV1.GET("/chat/:token", chatHandler.Handle)
	}

	return r
}
