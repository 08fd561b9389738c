package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"direct_chat_service/internal/chat/api/handlers"
	"direct_chat_service/internal/chat/app"
	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/presence"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/internal/chat/router"
	"direct_chat_service/pkg/config"
	"direct_chat_service/pkg/database"
	"direct_chat_service/pkg/logger"
	testtool "direct_chat_service/pkg/test_tool"
	"direct_chat_service/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	cfg.Defaults()
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}
	// token 與 redis session 同時過期
	token.TokenExpiration = cfg.SessionTTL

	ctx := context.Background()

	// 1. Mongo (conversations / messages)
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB database after retries",
			zap.String("host", cfg.MongoSQL.Host),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	if err := repository.EnsureMessageIndexes(ctx, mongo.Database); err != nil {
		logger.Log.Warn("ensure message indexes", zap.Error(err))
	}
	if err := repository.EnsureConversationIndexes(ctx, mongo.Database); err != nil {
		logger.Log.Warn("ensure conversation indexes", zap.Error(err))
	}

	// 2. PostgreSQL (members)
	pg, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr: fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.String("host", cfg.PostgreSQL.Host), zap.Error(err))
	}
	defer pg.Close()

	if err := repository.EnsureMemberSchema(ctx, pg); err != nil {
		logger.Log.Fatal("ensure member schema", zap.Error(err))
	}

	// 3. Redis (sessions)
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()

	// 4. Kafka (message lifecycle), optional
	publisher := repository.NewNopLifecyclePublisher()
	if cfg.Kafka.Enabled {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("kafka writer", zap.Error(err))
		}
		publisher = repository.NewKafkaLifecyclePublisher(writer)
	}
	defer publisher.Close()

	// 5. MinIO (avatars), optional
	avatars := repository.NewDisabledAvatarStorage()
	if cfg.MinIO.Enabled {
		mc, err := database.NewMinIOConnection(database.MinIOConnection{
			Endpoint:      cfg.MinIO.Endpoint,
			User:          cfg.MinIO.User,
			Password:      cfg.MinIO.Password,
			BucketName:    cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			RetryCount:    cfg.MinIO.RetryCount,
			RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("minio connection", zap.Error(err))
		}
		avatars = repository.NewMinIOAvatarStorage(mc, cfg.MinIO.URLExpiry)
	}

	// 6. Repository
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	memberRepo := repository.NewMemberRepository(pg)
	sessionRepo := database.NewRedisRepository[domain.MemberSession](redisClient, "session:")

	// 7. UseCases
	memberUC := app.NewMemberUseCase(memberRepo, cfg.SessionTTL, sessionRepo, avatars, nil)
	convUC := app.NewConversationUseCase(convRepo, msgRepo, memberRepo)
	msgUC := app.NewMessageUseCase(convRepo, msgRepo, publisher)

	// 8. Realtime, 一個 process 一個 registry
	registry := presence.New()
	coordinator := app.NewDeliveryCoordinator(msgRepo, convRepo, registry, publisher, cfg.Delivery)
	// 先把排隊中的 lifecycle event 送完, publisher 才關
	defer coordinator.Close()
	chatWebsocket := app.NewChatWebsocketHandler(registry, coordinator, app.NewTypingRelay(registry), cfg.Websocket)

	testtool.StartPprof(":6060")

	// 9. Fiber
	r := fiber.New(fiber.Config{BodyLimit: 2 * handlers.MaxAvatarSize})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, router.Handlers{
		Member:        handlers.NewMemberHandler(memberUC),
		Conversation:  handlers.NewConversationHandler(convUC),
		Message:       handlers.NewMessageHandler(msgUC),
		ChatWebsocket: chatWebsocket,
		Sessions:      memberUC,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("shutting down chat service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}

// connectRedis 有設定 sentinel 就走 sentinel, 否則連 REDIS_ADDR
func connectRedis(cfg config.RedisConfig) *redis.Client {
	masterName, sentinels := config.GetRedisSetting()
	if len(sentinels) > 0 {
		client, err := database.NewRedisClient(masterName, sentinels, cfg.RedisDB)
		if err != nil {
			logger.Log.Fatal("connect redis sentinel", zap.Strings("sentinels", sentinels), zap.Error(err))
		}
		return client
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := database.NewStandaloneRedisClient(addr, cfg.RedisDB)
	if err != nil {
		logger.Log.Fatal("connect redis", zap.String("addr", addr), zap.Error(err))
	}
	return client
}
