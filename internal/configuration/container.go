package configuration

import (
	"Circlet/internal/auth"
	"Circlet/internal/db"
	"Circlet/internal/handler"
	"Circlet/internal/hub"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"Circlet/internal/service"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Container struct {
	Hub      *hub.Hub
	Verifier auth.TokenVerifier
	Config   Config
	Logger   *zap.Logger

	MonitorHandler      handler.MonitorHandler
	PresenceHandler     handler.PresenceHandler
	CallHandler         handler.CallHandler
	ConversationHandler handler.ConversationHandler
	NotificationHandler handler.NotificationHandler

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(ctx context.Context, config *Config, logger *zap.Logger) (*Container, error) {
	mongoCfg := config.ChatDatabase

	con, err := db.OpenConnection(ctx, mongoCfg.Uri, mongoCfg.Database, db.ConnectOptions{
		ConnectTimeout: mongoCfg.ConnectTimeout,
		MaxPoolSize:    mongoCfg.MaxPoolSize,
		AppName:        "circlet",
	})
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	logger.Info("connected to mongo", zap.String("database", mongoCfg.Database))

	conversations := db.NewRepository[model.Conversation](con, mongoCfg.ConversationsCollection)
	messages := db.NewRepository[model.Message](con, mongoCfg.MessagesCollection)
	notifications := db.NewRepository[model.Notification](con, mongoCfg.NotificationsCollection)
	calls := db.NewRepository[model.Call](con, mongoCfg.CallsCollection)
	users := db.NewRepository[model.User](con, mongoCfg.UsersCollection)

	if err := ensureIndexes(ctx, conversations, messages, notifications, calls); err != nil {
		// indexes only speed things up; the server still works without them
		logger.Warn("failed to ensure indexes", zap.Error(err))
	}

	conversationRepo := repo.NewConversationRepository(conversations, logger)
	messageRepo := repo.NewMessageRepository(messages, logger)
	callRepo := repo.NewCallRepository(calls, logger)

	h := hub.NewHub(hub.Deps{
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Notifications: repo.NewNotificationRepository(notifications, mongoCfg.UsersCollection, logger),
		Calls:         callRepo,
		Users:         repo.NewUserRepository(users, logger),
	}, hub.Options{
		RingTimeout:    config.Realtime.RingTimeout,
		OfflineGrace:   config.Realtime.OfflineGrace,
		AllowedOrigins: config.Cors.AllowedOrigins,
	}, logger)

	verifier, err := auth.NewJWTService(auth.JWTConfig{
		Secret:   config.Auth.Secret,
		Issuer:   config.Auth.Issuer,
		TokenTTL: config.Auth.TokenTTL,
	})
	if err != nil {
		_ = con.Client().Disconnect(context.Background())
		return nil, err
	}

	return &Container{
		Hub:      h,
		Verifier: verifier,
		Config:   *config,
		Logger:   logger,

		MonitorHandler:      handler.NewMonitorHandler(hub.NewMonitorService(h)),
		PresenceHandler:     handler.NewPresenceHandler(h),
		CallHandler:         handler.NewCallHandler(service.NewCallService(h.Calls(), callRepo)),
		ConversationHandler: handler.NewConversationHandler(h.Messages(), service.NewConversationService(conversationRepo, messageRepo)),
		NotificationHandler: handler.NewNotificationHandler(h.Notifications()),

		mongoClient: con,
	}, nil
}

func ensureIndexes(
	ctx context.Context,
	conversations *db.Repository[model.Conversation],
	messages *db.Repository[model.Message],
	notifications *db.Repository[model.Notification],
	calls *db.Repository[model.Call],
) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var errs error
	create := func(c *mongo.Collection, models ...mongo.IndexModel) {
		if _, err := c.Indexes().CreateMany(ctx, models); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}

	create(conversations.Collection(),
		mongo.IndexModel{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}}},
	)
	create(messages.Collection(),
		mongo.IndexModel{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
	)
	create(notifications.Collection(),
		mongo.IndexModel{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}}},
	)
	create(calls.Collection(),
		mongo.IndexModel{Keys: bson.D{{Key: "call_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "caller_id", Value: 1}, {Key: "created_at", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
	)
	return errs
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	var errs error

	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close MongoDB connection: %w", err))
		}
	}

	return errs
}
