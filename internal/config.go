package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Order         OrderConfig         `mapstructure:"order"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Lock          LockConfig          `mapstructure:"lock"`
	Messaging     MessagingConfig     `mapstructure:"messaging"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Redis         RedisConfig         `mapstructure:"redis"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	ProofQueue    ProofQueueConfig    `mapstructure:"proof_queue"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OrderConfig struct {
	// Orders whose event is at least this many days away start in "waiting".
	WaitingThresholdDays int `mapstructure:"waiting_threshold_days"`
	ListLimit            int `mapstructure:"list_limit"`
}

type PaymentConfig struct {
	RelativeTolerance float64       `mapstructure:"relative_tolerance"`
	AbsoluteTolerance int64         `mapstructure:"absolute_tolerance"`
	PendingTTL        time.Duration `mapstructure:"pending_ttl"`
	PendingStore      string        `mapstructure:"pending_store"`
}

type SchedulerConfig struct {
	Timezone        string        `mapstructure:"timezone"`
	RunAt           string        `mapstructure:"run_at"`
	SendMaxAttempts uint64        `mapstructure:"send_max_attempts"`
	SendBackoff     time.Duration `mapstructure:"send_backoff"`
}

type LockConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type MessagingConfig struct {
	Driver          string         `mapstructure:"driver"`
	AdminRecipients []string       `mapstructure:"admin_recipients"`
	DirectoryTTL    time.Duration  `mapstructure:"directory_ttl"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	BotToken string        `mapstructure:"bot_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type OCRConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MinAmount int64         `mapstructure:"min_amount"`
	MaxAmount int64         `mapstructure:"max_amount"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

type ProofQueueConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
	QueueSize  int `mapstructure:"queue_size"`
}

// ApplyDefaults fills zero values that config.yml and the environment left unset.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "order-assistant"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Order.WaitingThresholdDays == 0 {
		c.Order.WaitingThresholdDays = 7
	}
	if c.Order.ListLimit == 0 {
		c.Order.ListLimit = 500
	}
	if c.Payment.RelativeTolerance == 0 && c.Payment.AbsoluteTolerance == 0 {
		c.Payment.RelativeTolerance = 0.10
		c.Payment.AbsoluteTolerance = 10000
	}
	if c.Payment.PendingTTL == 0 {
		c.Payment.PendingTTL = time.Hour
	}
	if c.Payment.PendingStore == "" {
		c.Payment.PendingStore = "memory"
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "Asia/Jakarta"
	}
	if c.Scheduler.RunAt == "" {
		c.Scheduler.RunAt = "07:00"
	}
	if c.Scheduler.SendMaxAttempts == 0 {
		c.Scheduler.SendMaxAttempts = 3
	}
	if c.Scheduler.SendBackoff == 0 {
		c.Scheduler.SendBackoff = 500 * time.Millisecond
	}
	if c.Lock.Driver == "" {
		c.Lock.Driver = "sql"
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = 60 * time.Second
	}
	if c.Messaging.Driver == "" {
		c.Messaging.Driver = "log"
	}
	if c.Messaging.DirectoryTTL == 0 {
		c.Messaging.DirectoryTTL = 10 * time.Minute
	}
	if c.Messaging.Telegram.BaseURL == "" {
		c.Messaging.Telegram.BaseURL = "https://api.telegram.org"
	}
	if c.Messaging.Telegram.Timeout == 0 {
		c.Messaging.Telegram.Timeout = 10 * time.Second
	}
	if c.OCR.Timeout == 0 {
		c.OCR.Timeout = 15 * time.Second
	}
	if c.OCR.MinAmount == 0 {
		c.OCR.MinAmount = 1000
	}
	if c.OCR.MaxAmount == 0 {
		c.OCR.MaxAmount = 1_000_000_000
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "order-assistant.messages"
	}
	if c.ProofQueue.MaxWorkers == 0 {
		c.ProofQueue.MaxWorkers = 4
	}
	if c.ProofQueue.QueueSize == 0 {
		c.ProofQueue.QueueSize = 100
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}
	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}
	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler config: %v", err))
	}
	if err := c.Lock.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("lock config: %v", err))
	}
	if err := c.Messaging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("messaging config: %v", err))
	}
	if c.OCR.Enabled && c.OCR.BaseURL == "" {
		errs = append(errs, "ocr config: base_url is required when enabled")
	}
	if c.needsRedis() && c.Redis.Addr == "" {
		errs = append(errs, "redis config: addr is required by the selected lock or pending store")
	}
	if c.Messaging.Driver == "nats" && c.NATS.URL == "" {
		errs = append(errs, "nats config: url is required when messaging driver is nats")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) needsRedis() bool {
	return c.Lock.Driver == "redis" || c.Payment.PendingStore == "redis"
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 || len(c.RefreshTokenSecret) < 32 {
		return errors.New("token secrets must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *PaymentConfig) Validate() error {
	if c.RelativeTolerance < 0 || c.AbsoluteTolerance < 0 {
		return errors.New("tolerances must be non-negative")
	}
	switch c.PendingStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown pending_store %q", c.PendingStore)
	}
	return nil
}

func (c *SchedulerConfig) Validate() error {
	if _, _, err := c.RunAtClock(); err != nil {
		return err
	}
	return nil
}

// RunAtClock parses run_at ("HH:MM") into hour and minute.
func (c *SchedulerConfig) RunAtClock() (int, int, error) {
	t, err := time.Parse("15:04", c.RunAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid run_at %q: %w", c.RunAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

func (c *LockConfig) Validate() error {
	switch c.Driver {
	case "memory", "sql", "redis":
	default:
		return fmt.Errorf("unknown lock driver %q", c.Driver)
	}
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	return nil
}

func (c *MessagingConfig) Validate() error {
	switch c.Driver {
	case "log", "nats":
	case "telegram":
		if c.Telegram.BaseURL == "" || c.Telegram.BotToken == "" {
			return errors.New("telegram base_url and bot_token are required")
		}
	default:
		return fmt.Errorf("unknown messaging driver %q", c.Driver)
	}
	return nil
}
