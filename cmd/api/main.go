package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/access"
	"github.com/octave-im/octave-api/internal/config"
	"github.com/octave-im/octave-api/internal/database"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/handler"
	"github.com/octave-im/octave-api/internal/middleware"
	"github.com/octave-im/octave-api/internal/realtime"
	"github.com/octave-im/octave-api/internal/repository"
	"github.com/octave-im/octave-api/internal/router"
	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/token"
	"github.com/octave-im/octave-api/pkg/media"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	uploader, err := media.New(media.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create media uploader: %v", err)
	}

	validate := dto.NewValidator()
	tokens := token.NewManager(cfg.JWTSecret)

	userRepo := repository.NewUserRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	voiceRoomRepo := repository.NewVoiceRoomRepository(db)

	registry := realtime.NewRegistry(logger)
	broker := realtime.NewBroker(registry, redisClient, natsConn, cfg.EventChannelBase, logger)
	synchronizer := realtime.NewSynchronizer(registry, broker, conversationRepo, logger)
	gateway := realtime.NewGateway(synchronizer, logger)

	brokerCtx, stopBroker := context.WithCancel(context.Background())
	defer stopBroker()
	broker.Start(brokerCtx)

	gate := access.NewGate(
		channelRepo,
		conversationRepo,
		communityRepo,
		access.NewRelationshipResolver(relationshipRepo),
		access.NewPermissionResolver(communityRepo, groupRepo),
		access.NewMembershipResolver(conversationRepo, communityRepo),
		logger,
	)

	userService := service.NewUserService(userRepo, relationshipRepo, conversationRepo, communityRepo, tokens, registry, uploader, validate, logger, cfg.UserTokenTTL, cfg.ChallengeTokenTTL)
	conversationService := service.NewConversationService(conversationRepo, userRepo, gate, synchronizer, validate, logger)
	channelService := service.NewChannelService(channelRepo, messageRepo, voiceRoomRepo, gate, synchronizer, tokens, cfg.VoiceServers, cfg.VoiceTokenTTL, validate, logger)
	communityService := service.NewCommunityService(communityRepo, channelRepo, groupRepo, gate, validate, logger)
	groupService := service.NewGroupService(groupRepo, gate, logger)
	voiceService := service.NewVoiceService(voiceRoomRepo, synchronizer, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(userService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		ChannelHandler:      handler.NewChannelHandler(channelService, logger),
		CommunityHandler:    handler.NewCommunityHandler(communityService, logger),
		GroupHandler:        handler.NewGroupHandler(groupService, logger),
		VoiceHandler:        handler.NewVoiceHandler(voiceService, logger),
		GatewayHandler:      handler.NewGatewayHandler(gateway, tokens, logger),
		AuthMiddleware:      middleware.RequireUser(tokens, userRepo),
		GatewayMiddleware:   middleware.RequireGateway(cfg.GatewayToken),
		RateLimiter:         middleware.RateLimit("auth", 10, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
