package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/order-assistant/pkg/clock"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Operate the daily reminder job",
}

var remindersRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run reminders once",
	Long:  `Run the daily reminder and auto-cancel pass once, for today or for --date, and print the summary`,
	RunE:  runRemindersOnce,
}

var reminderDate string

func runRemindersOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	deps, err := initializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	var asOf *time.Time
	if reminderDate != "" {
		d, err := clock.ParseDate(reminderDate, deps.Location)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", reminderDate, err)
		}
		asOf = &d
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	summary, err := deps.Scheduler.RunDailyReminders(ctx, asOf)
	if err != nil {
		return fmt.Errorf("reminder run failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func init() {
	remindersRunCmd.Flags().StringVar(&reminderDate, "date", "", "run as of this date (YYYY-MM-DD) in the business timezone")
	remindersCmd.AddCommand(remindersRunCmd)
}
