// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/config"
	"vyapar-go/internal/handler"
	"vyapar-go/internal/middleware"
	"vyapar-go/internal/pipeline"
	"vyapar-go/internal/repository"
	"vyapar-go/internal/service"
	"vyapar-go/pkg/database"
	"vyapar-go/pkg/es"
	"vyapar-go/pkg/hash"
	"vyapar-go/pkg/kafka"
	"vyapar-go/pkg/llm"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/mail"
	"vyapar-go/pkg/pdftext"
	"vyapar-go/pkg/storage"
	"vyapar-go/pkg/tasks"
	"vyapar-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 初始化数据库和 Redis
	database.InitDB(cfg.Database.Driver, cfg.Database.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	resetTokenRepo := repository.NewResetTokenRepository(database.DB)
	historyRepo := repository.NewChatHistoryRepository(database.DB)
	var sessionRepo repository.SessionRepository
	if database.RDB != nil {
		sessionRepo = repository.NewSessionRepository(database.RDB, cfg.Session.TTL)
	} else {
		sessionRepo = repository.NewMemorySessionRepository(cfg.Session.TTL)
	}

	// 5. 初始化外部客户端，可选后端未配置时跳过
	llmClient, err := llm.NewClient(rootCtx, cfg.LLM)
	if err != nil {
		log.Fatal("LLM 客户端初始化失败", err)
	}
	if closer, ok := llmClient.(io.Closer); ok {
		defer closer.Close()
	}
	if cfg.LLM.APIKey == "" {
		log.Warnf("llm.api_key 未配置，聊天与文档解释将返回错误")
	}
	extractor := pdftext.New(cfg.Document.Extractor, cfg.Tika.ServerURL, cfg.Document.MaxChars)

	var archive storage.Archive
	if cfg.MinIO.Endpoint != "" {
		minioArchive, err := storage.NewMinioArchive(rootCtx, cfg.MinIO)
		if err != nil {
			log.Errorf("MinIO 初始化失败，PDF 将不会归档: %v", err)
		} else {
			archive = minioArchive
		}
	}

	var index service.DocumentIndex
	if cfg.Elasticsearch.Addresses != "" {
		esIndex, err := es.NewIndex(cfg.Elasticsearch)
		if err != nil {
			log.Errorf("es 初始化失败，文档检索不可用: %v", err)
		} else {
			index = esIndex
		}
	}

	// 6. 重置邮件：配置了 Kafka 时异步投递，否则同步发送
	processor := pipeline.NewProcessor(mail.NewSender(cfg.Mail), cfg.Auth.ResetURL)
	var dispatcher tasks.Dispatcher = processor
	if cfg.Kafka.Brokers != "" {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		dispatcher = producer
		go kafka.StartConsumer(rootCtx, cfg.Kafka, database.RDB, processor)
	}

	// 7. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	gen := llm.GenerationFromConfig(cfg.LLM.Generation)
	systemPrompt := cfg.LLM.Prompt.System

	userService := service.NewUserService(service.UserServiceDeps{
		Users:         userRepo,
		ResetTokens:   resetTokenRepo,
		Sessions:      sessionRepo,
		History:       historyRepo,
		JWT:           jwtManager,
		Hasher:        hash.NewHasher(cfg.Auth.BcryptCost),
		Dispatcher:    dispatcher,
		SystemPrompt:  systemPrompt,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
	})
	documentService := service.NewDocumentService(service.DocumentServiceDeps{
		Sessions:       sessionRepo,
		History:        historyRepo,
		SystemPrompt:   systemPrompt,
		DocumentPrompt: cfg.LLM.Prompt.Document,
		Extractor:      extractor,
		LLM:            llmClient,
		Generation:     gen,
		PreviewChars:   cfg.Document.PreviewChars,
		Archive:        archive,
		Index:          index,
	})

	limiter := middleware.NewLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, time.Minute)
	defer limiter.Stop()

	// 8. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.RouterDeps{
		Users:         userService,
		Sessions:      service.NewSessionService(sessionRepo, historyRepo, systemPrompt),
		Chat:          service.NewChatService(sessionRepo, historyRepo, systemPrompt, llmClient, gen),
		Conversations: service.NewConversationService(sessionRepo, historyRepo, systemPrompt),
		Documents:     documentService,
		Invoices:      service.NewInvoiceService(sessionRepo, historyRepo, systemPrompt, archive),
		Legal:         service.NewLegalService(archive),
		JWT:           jwtManager,
		Revocations:   sessionRepo,
		Limiter:       limiter,
		MaxUploadSize: cfg.Document.MaxUploadSize,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 停止 Kafka 消费者
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
