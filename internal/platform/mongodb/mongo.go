package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

type Config struct {
	URI      string
	Database string
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, log *logger.Logger, cfg Config) (*mongo.Client, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("missing MONGODB_URI")
	}
	opts := options.Client().ApplyURI(cfg.URI).
		SetMaxPoolSize(20).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(30 * time.Second)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pctx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("Connected to MongoDB", "mongo_uri", cfg.URI, "database", cfg.Database)
	return client, nil
}

func Disconnect(log *logger.Logger, client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warn("MongoDB disconnect failed", "error", err)
	}
}
