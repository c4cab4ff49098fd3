// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"sms-relay-go/internal/config"
	"sms-relay-go/internal/handler"
	"sms-relay-go/internal/middleware"
	"sms-relay-go/internal/repository"
	"sms-relay-go/internal/service"
	"sms-relay-go/pkg/database"
	"sms-relay-go/pkg/kafka"
	"sms-relay-go/pkg/llm"
	"sms-relay-go/pkg/log"
	"sms-relay-go/pkg/sms"
	"sms-relay-go/pkg/tasks"
	"sms-relay-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化 Redis 和可选的 MySQL
	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	defer rdb.Close()

	var deliveryRepo repository.DeliveryRepository
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Fatal("MySQL 初始化失败", err)
		}
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatal("投递日志表迁移失败", err)
		}
		deliveryRepo = repository.NewDeliveryRepository(db)
		log.Info("投递日志已启用")
	}

	// 4. 初始化 Repository 和外部客户端
	conversationRepo := repository.NewConversationRepository(rdb, cfg.Conversation.TTL, cfg.Conversation.MaxMessages)
	inboundRepo := repository.NewInboundRepository(rdb, repository.DefaultInboundTTL)
	llmClient := llm.NewClient(cfg.LLM)
	smsClient := sms.NewClient(cfg.Twilio)
	deliveryService := service.NewDeliveryService(smsClient, deliveryRepo, cfg.Reply.SegmentDelay)

	// 5. 初始化后台任务分发。Processor 需要 MessageService，而 MessageService 又依赖 Dispatcher，
	// 所以这里先声明变量，由闭包在运行时取值。
	var messageService service.MessageService
	processor := tasks.ProcessorFunc(func(ctx context.Context, task tasks.ReplyTask) error {
		return messageService.Process(ctx, task)
	})

	var (
		dispatcher   tasks.Dispatcher
		pool         *tasks.Pool
		producer     *kafka.Producer
		consumerDone = make(chan struct{})
		stopConsumer = func() {}
	)
	switch cfg.Dispatch.Mode {
	case config.DispatchModeKafka:
		producer = kafka.NewProducer(cfg.Kafka)
		dispatcher = producer
		consumerCtx, cancel := context.WithCancel(context.Background())
		stopConsumer = cancel
		go func() {
			defer close(consumerDone)
			kafka.StartConsumer(consumerCtx, cfg.Kafka, processor)
		}()
	default:
		pool = tasks.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, processor)
		dispatcher = pool
		close(consumerDone)
		log.Infof("本地任务池已启动，workers=%d", cfg.Dispatch.Workers)
	}

	// 6. 初始化 Service (依赖注入)
	messageService = service.NewMessageService(conversationRepo, inboundRepo, llmClient, deliveryService, dispatcher, service.MessageServiceConfig{
		MaxSegmentLength: cfg.Reply.MaxSegmentLength,
		FailureMessage:   cfg.Reply.FailureMessage,
	})
	adminService := service.NewAdminService(conversationRepo, deliveryRepo, messageService)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	r.GET("/healthz", handler.Healthz)

	webhook := []gin.HandlerFunc{}
	if cfg.Twilio.ValidateSignature {
		webhook = append(webhook, middleware.TwilioSignature(cfg.Twilio.AuthToken, cfg.Server.PublicURL))
	} else {
		log.Warnf("Twilio 签名校验已关闭，/message 接受任何来源的请求")
	}
	webhook = append(webhook, handler.NewMessageHandler(messageService).Receive)
	r.POST("/message", webhook...)

	if cfg.JWT.Secret != "" {
		apiV1 := r.Group("/api/v1")
		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
		{
			adminHandler := handler.NewAdminHandler(adminService)
			admin.GET("/conversations/:sender", adminHandler.GetConversation)
			admin.DELETE("/conversations/:sender", adminHandler.ClearConversation)
			admin.GET("/deliveries/:sender", adminHandler.ListDeliveries)
		}
	} else {
		log.Warnf("jwt.secret 未配置，管理接口未注册")
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 先停止接收新的 webhook，再等待后台回复发完
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			log.Errorf("后台任务未能在超时前完成: %v", err)
		}
	}
	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("Kafka 消费者未能在超时前停止")
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}
