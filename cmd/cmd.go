package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/pkg/logger"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "order-assistant",
	Short: "Order Assistant",
	Long:  `Order lifecycle, payment reconciliation and daily reminders for a catering kitchen.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads config.yml from path when present, then lets ENV_* variables override it.
// A .env file in the working directory is loaded first for local runs.
func loadConfig(path string) (*internal.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	logger.Init(logger.Options{
		Env:    cfg.App.Env,
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})

	return &cfg, nil
}

// bindEnvKeys makes keys absent from config.yml visible to Unmarshal, so a container can run on env alone.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"app.name", "app.env",
		"http_server.port", "http_server.base_url", "http_server.allowed_origins",
		"database.source", "database.max_open_conns", "database.max_idle_conns",
		"security.access_token_secret", "security.refresh_token_secret", "security.bcrypt_cost",
		"observability.metrics.enabled", "observability.logging.level", "observability.logging.format",
		"scheduler.timezone", "scheduler.run_at",
		"lock.driver", "payment.pending_store",
		"messaging.driver", "messaging.admin_recipients", "messaging.telegram.bot_token",
		"ocr.enabled", "ocr.base_url", "ocr.api_key",
		"redis.addr", "redis.password", "redis.db",
		"nats.url", "nats.subject",
		"webhook.secret",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(remindersCmd)
}
