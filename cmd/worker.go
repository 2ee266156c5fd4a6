package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/travel-approval/internal/notification"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that consume what the API server publishes.`,
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Relay published notifications to the webhook",
	Long:  `Subscribe to the notification subjects on NATS and forward each message to the configured webhook through the notification worker pool.`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotificationWorker()
	},
}

var (
	maxWorkers     int
	jobQueueSize   int
	workerPoolSize int
	natsURL        string
	webhookURL     string
	queueGroup     string
)

func startNotificationWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	logger := logger.LoggerWrapper()

	cfg := config.Notification
	cfg.NATSURL = getStringFlag(natsURL, cfg.NATSURL)
	cfg.WebhookURL = getStringFlag(webhookURL, cfg.WebhookURL)
	cfg.MaxWorkers = getIntFlag(maxWorkers, cfg.MaxWorkers)
	cfg.JobQueueSize = getIntFlag(jobQueueSize, cfg.JobQueueSize)
	cfg.WorkerPoolSize = getIntFlag(workerPoolSize, cfg.WorkerPoolSize)

	if cfg.NATSURL == "" || cfg.WebhookURL == "" {
		fmt.Fprintln(os.Stderr, "notification worker needs both a NATS url and a webhook url")
		os.Exit(1)
	}

	conn, err := notification.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to NATS: %v\n", err)
		os.Exit(1)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	dispatcher := notification.NewDispatcher(cfg, logger, notification.NewWebhookSink(cfg.WebhookURL, &http.Client{Timeout: timeout}))
	dispatcher.Start()

	subject := notification.NewNATSSink(conn, cfg.SubjectPrefix, logger).Subject(">")
	sub, err := conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		var m notification.Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			logger.Warn("dropping malformed notification", "subject", msg.Subject, "error", err)
			return
		}
		for _, n := range m.Notifications() {
			_ = dispatcher.Notify(context.Background(), n)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to subscribe to %s: %v\n", subject, err)
		os.Exit(1)
	}

	logger.Info("notification worker is running. Press Ctrl+C to stop.",
		"subject", subject,
		"queue_group", queueGroup,
		"max_workers", cfg.MaxWorkers,
		"job_queue_size", cfg.JobQueueSize,
		"webhook_url", cfg.WebhookURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down notification worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		_ = sub.Drain()
		dispatcher.Drain()
		dispatcher.Shutdown()
		conn.Close()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Info("notification worker shutdown complete")
	case <-ctx.Done():
		logger.Warn("shutdown timeout reached, forcing exit")
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&workerPoolSize, "worker-pool-size", 0, "Worker pool channel size (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server url (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Webhook receiving notifications (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&queueGroup, "queue-group", "travel-notification-relay", "NATS queue group shared by relay replicas")

	workerCmd.AddCommand(notificationWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
