// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sorvx-chat-go/internal/config"
	"sorvx-chat-go/internal/handler"
	"sorvx-chat-go/internal/middleware"
	"sorvx-chat-go/internal/model"
	"sorvx-chat-go/internal/repository"
	"sorvx-chat-go/internal/reveal"
	"sorvx-chat-go/internal/service"
	"sorvx-chat-go/pkg/database"
	"sorvx-chat-go/pkg/kafka"
	"sorvx-chat-go/pkg/llm"
	"sorvx-chat-go/pkg/log"
	"sorvx-chat-go/pkg/mailer"
	"sorvx-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err := database.DB.AutoMigrate(&model.User{}, &model.Chat{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	chatRepository := repository.NewChatRepository(database.DB)
	revealRecordRepo := repository.NewRevealRecordRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	renderer := reveal.NewRenderer(
		revealRecordRepo,
		time.Duration(cfg.Reveal.SpeedMs)*time.Millisecond,
		time.Duration(cfg.Reveal.JitterMs)*time.Millisecond,
	)
	userService := service.NewUserService(userRepository, jwtManager)
	resetService := service.NewResetService(userRepository, kafka.NewEmailNotifier(), cfg.App.BaseURL)
	chatService := service.NewChatService(chatRepository, llmClient, renderer)

	// 6. 启动后台 Kafka 消费者，负责重置邮件的实际投递
	smtpMailer := mailer.NewMailer(cfg.SMTP, cfg.App.Name)
	go kafka.StartConsumer(cfg.Kafka, smtpMailer)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	r.GET("/healthz", handler.NewHealthHandler().Check)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组（公开访问）
		auth := apiV1.Group("/auth")
		{
			authHandler := handler.NewAuthHandler(userService, resetService)
			auth.POST("/refreshToken", authHandler.RefreshToken)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Chat 历史路由组，需要认证
		chats := apiV1.Group("/chats")
		chats.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			historyHandler := handler.NewHistoryHandler(chatService)
			chats.GET("", historyHandler.ListChats)
			chats.GET("/:chatId", historyHandler.GetChat)
			chats.POST("/:chatId", historyHandler.SaveChat)
			chats.DELETE("/:chatId", historyHandler.DeleteChat)
		}

		// Chat 路由 (WebSocket)
		chatHandler := handler.NewChatHandler(chatService, userService, jwtManager)
		chatGroup := apiV1.Group("/chat")
		chatGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chatGroup.GET("/websocket-token", chatHandler.GetWebsocketStopToken)
		}
		r.GET("/chat/:token", chatHandler.Handle)
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

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在进程退出时自然结束；
	// 邮件任务未消费前停留在主题中，重启后继续投递。
	log.Info("服务已优雅关闭")
}
