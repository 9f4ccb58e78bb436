/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/storefront-hq/backoffice/config"
	"github.com/storefront-hq/backoffice/internal/db"
	"github.com/storefront-hq/backoffice/internal/mq"
	"github.com/storefront-hq/backoffice/internal/notifier"
	"github.com/storefront-hq/backoffice/internal/server"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/types"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes order events and sends notification emails",
	Long: `Consumes order events from the configured message queue. When SES is
configured each event is mailed to the customer and the shop admin, otherwise
events are only logged. Usage:

	backoffice worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := server.NewLogger(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("init mq: %w", err)
		}
		if events == nil {
			return errors.New("MQ_BACKEND is not set, nothing to consume")
		}
		defer events.Close()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()
		users := services.NewUserService(store.NewUserRepository(dbConn), cfg.BcryptCost)

		mailer, err := notifier.NewFromConfig(ctx, cfg.Email, users, logger)
		if err != nil {
			return err
		}

		handle := func(ctx context.Context, event types.OrderEvent) error {
			logger.Info("order event",
				"type", event.Type,
				"order_id", event.OrderID,
				"status", event.Status,
				"previous_status", event.PreviousStatus,
			)
			if mailer == nil {
				return nil
			}
			if err := mailer.HandleOrderEvent(ctx, event); err != nil {
				logger.Error("failed to send order notification", "order_id", event.OrderID, "error", err)
				return err
			}
			return nil
		}
		onDrop := func(msg mq.Message, err error) {
			logger.Warn("dropping undecodable order event", "message_id", msg.ID, "error", err)
		}

		if mailer == nil {
			logger.Info("SES_SENDER_EMAIL is not set, order events are logged only")
		}
		logger.Info("worker started", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		if err := events.SubscribeOrderEvents(ctx, handle, onDrop); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume order events: %w", err)
		}
		logger.Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
