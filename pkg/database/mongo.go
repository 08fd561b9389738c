package database

import (
	"context"
	"fmt"
	"time"

	"direct_chat_service/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// NewMongoDB connect and ping the primary, retried RetryCount times.
// A cancelled ctx stops the retries early.
func NewMongoDB(ctx context.Context, c Connection, dbName string) (*MongoDB, error) {
	clientOpts := options.Client().ApplyURI(c.ConnectStr).SetAppName("chat_service")

	var lastErr error
	for attempt := 0; attempt <= c.RetryCount; attempt++ {
		client, err := connectMongo(ctx, clientOpts)
		if err == nil {
			return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
		}
		lastErr = err
		logger.Log.Warn("Failed to connect to mongoDB, retrying...",
			zap.Int("attempt", attempt+1),
			zap.String("database", dbName),
			zap.Error(err),
		)

		if attempt == c.RetryCount {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect mongo: %w", ctx.Err())
		case <-time.After(c.RetryInterval * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to MongoDB after %d retries: %w", c.RetryCount, lastErr)
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// Close disable mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
