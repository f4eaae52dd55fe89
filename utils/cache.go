// File: utils/cache.go
package utils

import (
	"context"
	"fmt"
	"time"

	"pagoda/config"

	"github.com/go-redis/redis/v8"
)

// SnapshotClient is the Redis client that mirrors page snapshots.
var SnapshotClient *redis.Client

// InitSnapshotCache connects the snapshot client using the DB from AppConfig.
func InitSnapshotCache() error {
	SnapshotClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSnapshotDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := SnapshotClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis (Snapshots): %w", err)
	}
	return nil
}

// GetSnapshotClient returns the snapshot client, connecting on first use.
func GetSnapshotClient() *redis.Client {
	if SnapshotClient == nil {
		if err := InitSnapshotCache(); err != nil {
			GetLogger().Sugar().Warnf("utils: %v", err)
		}
	}
	return SnapshotClient
}
