package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/travel-approval/internal/core/events"
	"github.com/frahmantamala/travel-approval/internal/notification"
	notificationPostgres "github.com/frahmantamala/travel-approval/internal/notification/postgres"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/user"
	userPostgres "github.com/frahmantamala/travel-approval/internal/user/postgres"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Replay request events through the notification pipeline for testing and debugging`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a request event",
	Long:  `Publish a request event such as request.approved and deliver the notifications it produces`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishRequestEvent(cmd.Context(), args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventRequestID     string
	eventRequestNumber string
	eventUsers         string
	eventRole          string
	eventDepartment    string
	eventNewStatus     string
	eventTitle         string
)

func publishRequestEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	known := false
	for _, t := range events.RequestEventTypes() {
		known = known || t == eventType
	}
	if !known {
		return fmt.Errorf("unknown event type %q, expected one of %s", eventType, strings.Join(events.RequestEventTypes(), ", "))
	}

	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := initGorm(db)
	if err != nil {
		return err
	}

	sinks := []notification.Sink{notification.NewService(notificationPostgres.NewNotificationRepository(gdb), lg)}
	if config.Notification.NATSURL != "" {
		nc, err := notification.ConnectNATS(config.Notification.NATSURL, lg)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		sinks = append(sinks, notification.NewNATSSink(nc, config.Notification.SubjectPrefix, lg))
	}
	dispatcher := notification.NewDispatcher(config.Notification, lg, sinks...)
	dispatcher.Start()
	defer dispatcher.Shutdown()

	users := user.NewService(userPostgres.NewUserRepository(gdb), rbac.NewResolver(config.RBAC.AdminEmails), lg)
	bus := events.NewEventBus(lg)
	notification.NewEventHandler(dispatcher, users, lg).RegisterEventHandlers(bus)

	event := events.NewRequestEvent(eventType, eventRequestID, eventRequestNumber)
	event.NewStatus = eventNewStatus
	event.Title = eventTitle
	event.Message = fmt.Sprintf("%s (published from the command line)", eventTitle)
	event.Recipients = events.Recipients{Role: eventRole, DepartmentID: eventDepartment}
	for _, id := range strings.Split(eventUsers, ",") {
		if id = strings.TrimSpace(id); id != "" {
			event.Recipients.UserIDs = append(event.Recipients.UserIDs, id)
		}
	}
	if event.Recipients.Empty() {
		return fmt.Errorf("pass --users or --role to address the event")
	}

	lg.Info("publishing request event", "event_type", eventType, "event_id", event.EventID(), "request_id", eventRequestID)
	if err := bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	dispatcher.Drain()
	lg.Info("request event delivered")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventRequestID, "request-id", "", "Request id the event refers to")
	publishEventCmd.Flags().StringVar(&eventRequestNumber, "number", "", "Request number shown in the notification")
	publishEventCmd.Flags().StringVar(&eventUsers, "users", "", "Comma separated recipient user ids")
	publishEventCmd.Flags().StringVar(&eventRole, "role", "", "Recipient role pool, e.g. comptroller")
	publishEventCmd.Flags().StringVar(&eventDepartment, "department", "", "Department scoping a head pool")
	publishEventCmd.Flags().StringVar(&eventNewStatus, "status", "", "Status the request moved to")
	publishEventCmd.Flags().StringVar(&eventTitle, "title", "Travel request update", "Notification title")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
