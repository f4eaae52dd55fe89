package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"pagoda/config"
	"pagoda/cron"
	"pagoda/services/notification"
	"pagoda/utils"

	"github.com/spf13/cobra"
)

func newWorkerCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver receipt push notifications from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadConfig(rootOpts.ConfigPath)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return work(ctx)
		},
	}
}

func work(ctx context.Context) error {
	logger := utils.GetLogger()

	client, err := utils.FirebaseMessaging(ctx, config.AppConfig.FirebaseServiceAccountKeyPath)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}
	notifier, err := notification.NewPushService(client, logger)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}
	return cron.RunReceiptWorker(ctx, notifier)
}
