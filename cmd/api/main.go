package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campuschat/config"
	"campuschat/internal/commands"
	"campuschat/internal/domain"
	"campuschat/internal/events"
	"campuschat/internal/handler"
	"campuschat/internal/middleware"
	chatredis "campuschat/internal/redis"
	"campuschat/internal/repository"
	"campuschat/internal/services"
	"campuschat/internal/storage"
	ws "campuschat/internal/websocket"
	"campuschat/pkg/database"
	"campuschat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Conversation{},
		&domain.Message{},
		&domain.Channel{},
		&repository.ConversationSequence{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := chatredis.NewClient(cfg)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	presence := chatredis.NewPresenceStore(redisClient, 2*time.Minute)
	bus := events.NewRedisBus(redisClient, l)

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	channelRepo := repository.NewChannelRepository(db)

	authService := services.NewAuthService(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)
	messageService := services.NewMessageService(conversationRepo, messageRepo, bus, l)
	conversationService := services.NewConversationService(conversationRepo, bus, l)
	channelService := services.NewChannelService(channelRepo, l)

	cmdBus := commands.NewBus()
	messageService.RegisterHandlers(cmdBus)
	conversationService.RegisterHandlers(cmdBus)
	channelService.RegisterHandlers(cmdBus)

	s3Client, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
	})
	if err != nil {
		log.Fatalf("connect s3: %v", err)
	}
	uploadService := services.NewUploadService(s3Client)

	hub := ws.NewHub(l)
	go hub.Run(ctx)

	bridge := ws.NewBridge(bus, hub)
	if err := bridge.Run(ctx); err != nil {
		log.Fatalf("event bridge: %v", err)
	}

	router := ws.NewRouter(cmdBus, ws.NewRoomAuthorizer(conversationRepo, channelRepo), hub, cfg.CallTimeout, l)
	wsHandler := ws.NewHandler(authService, hub, router, presence, bus, conversationRepo, l)

	conversationHandler := handler.NewConversationHandler(conversationService)
	messageHandler := handler.NewMessageHandler(messageService)
	channelHandler := handler.NewChannelHandler(channelService)
	uploadHandler := handler.NewUploadHandler(uploadService)

	gin.SetMode(cfg.AppMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(l))
	r.Use(middleware.ErrorHandler(l))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/ws", wsHandler.Connect)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.POST("/conversations/direct", conversationHandler.CreateDirect)
		api.POST("/conversations/group", conversationHandler.CreateGroup)
		api.GET("/conversations", conversationHandler.List)
		api.GET("/conversations/:id", conversationHandler.Get)
		api.POST("/conversations/:id/archive", conversationHandler.Archive)
		api.POST("/conversations/:id/unarchive", conversationHandler.Unarchive)
		api.POST("/conversations/:id/participants", conversationHandler.AddParticipant)
		api.DELETE("/conversations/:id/participants/:userId", conversationHandler.RemoveParticipant)

		api.POST("/conversations/:id/messages", messageHandler.Send)
		api.GET("/conversations/:id/messages", messageHandler.History)
		api.GET("/conversations/:id/messages/resync", messageHandler.Resync)
		api.PATCH("/messages/:messageId", messageHandler.Edit)
		api.DELETE("/messages/:messageId", messageHandler.Delete)

		api.POST("/channels", channelHandler.Create)
		api.GET("/channels", channelHandler.ListPublic)
		api.GET("/channels/mine", channelHandler.ListMine)
		api.POST("/channels/:id/join", channelHandler.Join)
		api.POST("/channels/:id/leave", channelHandler.Leave)
		api.POST("/channels/:id/archive", channelHandler.Archive)
		api.POST("/channels/:id/unarchive", channelHandler.Unarchive)

		api.POST("/uploads", uploadHandler.Upload)
	}

	l.Infof("starting server on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("server: %v", err)
	}
}
