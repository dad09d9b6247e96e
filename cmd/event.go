package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/employee-onboarding/internal/core/events"
	"github.com/frahmantamala/employee-onboarding/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test events through the bus and, when configured, the broker`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event to the event bus for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var (
	eventData       string
	eventEmployeeID string
)

// publishTestEvent goes through the same bus the server builds, so the
// audit logger and, when configured, the AMQP forwarder both see it.
func publishTestEvent(eventType string) {
	lg := logger.LoggerWrapper()
	eventBus := events.NewEventBus(lg)
	if cfg, err := loadConfig(configPath); err == nil {
		lg = initLogger(cfg)
		eventBus = newEventBus(cfg, lg)
	} else {
		lg.Warn("config not loaded, publishing on a bare bus", "error", err)
	}

	var event events.Event
	switch eventType {
	case events.EmployeeOnboardedEventType:
		event = events.NewEmployeeOnboardedEvent(eventEmployeeID, "test", "test@example.com", nil)
	case events.EmployeeCreatedEventType:
		event = events.NewEmployeeCreatedEvent(eventEmployeeID, "Test", "Event")
	default:
		event = events.BaseEvent{
			ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"message": eventData,
				"source":  "cli-command",
			},
		}
	}

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eventBus.Publish(ctx, event); err != nil {
		lg.Error("failed to publish event", "error", err)
		return
	}
	if err := eventBus.Wait(ctx); err != nil {
		lg.Error("event handlers did not finish", "error", err)
		return
	}
	lg.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().StringVar(&eventEmployeeID, "employee-id", "00000000-0000-4000-8000-000000000000", "Employee id for employee.* events")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
