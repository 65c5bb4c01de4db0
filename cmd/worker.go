package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/order-assistant/internal/notification"
	"github.com/frahmantamala/order-assistant/internal/reminder"
	"github.com/frahmantamala/order-assistant/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long-running workers: the daily reminder loop and the outbound message relay.`,
}

var reminderWorkerCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Run the daily reminder loop",
	Long:  `Run reminders and H-3 auto-cancellation every day at scheduler.run_at in the business timezone`,
	Run: func(cmd *cobra.Command, args []string) {
		startReminderWorker()
	},
}

var outboxWorkerCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Relay queued chat messages to Telegram",
	Long:  `Consume messages published on the NATS subject and deliver them through the Telegram Bot API`,
	Run: func(cmd *cobra.Command, args []string) {
		startOutboxWorker()
	},
}

var (
	runOnStart  bool
	outboxQueue string
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func startReminderWorker() {
	cfg, err := loadConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps, err := initializeDependencies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	lg := deps.Logger
	hour, minute, _ := cfg.Scheduler.RunAtClock()
	runner := reminder.NewRunner(deps.Scheduler, deps.Clock, reminder.RunnerConfig{
		Location:   deps.Location,
		Hour:       hour,
		Minute:     minute,
		RunOnStart: runOnStart,
	}, logger.Component("reminder_runner"))

	ctx, stop := signalContext()
	defer stop()

	lg.Info("reminder worker is running. Press Ctrl+C to stop.",
		"timezone", cfg.Scheduler.Timezone,
		"run_at", cfg.Scheduler.RunAt,
		"run_on_start", runOnStart)
	if err := runner.Run(ctx); err != nil {
		lg.Error("reminder worker stopped", "error", err)
	}
	lg.Info("reminder worker shutdown complete")
}

func startOutboxWorker() {
	cfg, err := loadConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.Component("outbox")

	if cfg.NATS.URL == "" {
		fmt.Fprintln(os.Stderr, "nats.url is required for the outbox worker")
		os.Exit(1)
	}
	if cfg.Messaging.Telegram.BotToken == "" {
		fmt.Fprintln(os.Stderr, "messaging.telegram.bot_token is required for the outbox worker")
		os.Exit(1)
	}

	conn, err := notification.ConnectNATS(cfg.NATS.URL, cfg.App.Name+"-outbox")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to nats: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	d := &Dependencies{Config: cfg}
	direct := notification.NewRetryingSender(d.telegramSender(), cfg.Scheduler.SendMaxAttempts, cfg.Scheduler.SendBackoff, lg)
	relay := notification.NewRelay(direct, lg)

	ctx, stop := signalContext()
	defer stop()

	if err := relay.Run(ctx, conn, cfg.NATS.Subject, outboxQueue); err != nil {
		lg.Error("outbox relay stopped", "error", err)
		os.Exit(1)
	}
	lg.Info("outbox worker shutdown complete")
}

func init() {
	reminderWorkerCmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "run once immediately to catch up after a restart")
	outboxWorkerCmd.Flags().StringVar(&outboxQueue, "queue", "outbox", "NATS queue group shared by relay instances")

	workerCmd.AddCommand(reminderWorkerCmd)
	workerCmd.AddCommand(outboxWorkerCmd)
}
