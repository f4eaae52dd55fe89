package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pagoda/config"
	"pagoda/models"
	"pagoda/services/notification"
	"pagoda/services/tasks"
	"pagoda/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ReceiptQueueOpt is the asynq connection shared by the enqueuer and the worker.
func ReceiptQueueOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReceiptQueueDB,
	}
}

// NewReceiptMux routes receipt tasks to notifier.
func NewReceiptMux(notifier notification.ReceiptNotifier) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReceipt, handleReceiptTask(notifier))
	return mux
}

// RunReceiptWorker serves receipt tasks until ctx ends.
func RunReceiptWorker(ctx context.Context, notifier notification.ReceiptNotifier) error {
	logger := utils.GetLogger()

	concurrency := config.AppConfig.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(
		ReceiptQueueOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := NewReceiptMux(notifier)

	go monitorRedisConnection(ctx)

	const maxAttempts = 5
	for attempts := 1; ; attempts++ {
		logger.Info("starting receipt worker", zap.Int("attempt", attempts))
		err := srv.Start(mux)
		if err == nil {
			break
		}
		logger.Warn("receipt worker failed to start",
			zap.Int("attempt", attempts), zap.Int("max_attempts", maxAttempts), zap.Error(err))
		if attempts == maxAttempts {
			return fmt.Errorf("receipt worker: max retry attempts reached: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempts*2) * time.Second):
		}
	}

	<-ctx.Done()
	logger.Info("receipt worker shutting down")
	srv.Shutdown()
	return nil
}

func handleReceiptTask(notifier notification.ReceiptNotifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		var p models.ReceiptPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid receipt payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if p.DeviceToken == "" {
			logger.Warn("receipt without device token dropped", zap.String("booking_id", p.BookingID))
			return nil
		}

		logger.Info("sending receipt",
			zap.String("booking_id", p.BookingID),
			zap.String("booking_number", p.BookingNumber),
		)
		if err := notifier.SendReceipt(ctx, p); err != nil {
			logger.Error("failed to send receipt", zap.String("booking_id", p.BookingID), zap.Error(err))
			return err
		}
		return nil
	}
}

// monitorRedisConnection pings the queue database periodically to detect failures at runtime.
func monitorRedisConnection(ctx context.Context) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReceiptQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				utils.GetLogger().Warn("receipt queue redis connection lost", zap.Error(err))
			}
		}
	}
}
