package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/employee-onboarding/internal/core/events"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that consume the events the HTTP server forwards to the broker.`,
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume forwarded onboarding events",
	Long:  `Drain the onboarding event queue and write one audit line per event`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var (
	amqpURL   string
	queueName string
)

func startEventWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(config)

	url := getStringFlag(amqpURL, config.Events.AMQPURL)
	queue := getStringFlag(queueName, config.Events.Queue)
	if url == "" {
		logger.Error("events.amqp_url is not set; nothing to consume")
		os.Exit(1)
	}

	// the worker replays broker messages onto a local bus so the same
	// audit handler the server uses records them
	eventBus := events.NewEventBus(logger)
	events.RegisterAuditLogger(eventBus, logger)

	consumer := events.NewConsumer(url, queue, logger, func(ctx context.Context, env events.Envelope) error {
		return eventBus.PublishSync(ctx, events.BaseEvent{
			ID:        env.ID,
			Type:      env.Type,
			Timestamp: env.OccurredAt,
			Data:      env.Data,
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("event worker is running. Press Ctrl+C to stop.", "queue", queue)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("event worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("event worker shutdown complete")
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	eventWorkerCmd.Flags().StringVar(&amqpURL, "amqp-url", "", "Broker URL, overrides events.amqp_url")
	eventWorkerCmd.Flags().StringVar(&queueName, "queue", "", "Queue name, overrides events.queue")

	workerCmd.AddCommand(eventWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
