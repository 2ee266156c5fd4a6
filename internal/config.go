package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Availability  AvailabilityConfig  `mapstructure:"availability"`
	RBAC          RBACConfig          `mapstructure:"rbac"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	RateLimitPerSec   float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst"`
	OpenAPIValidation bool          `mapstructure:"openapi_validation"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	JWTRefreshSecret     string        `mapstructure:"jwt_refresh_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
	ReauthTimeout        time.Duration `mapstructure:"reauth_timeout"`
}

// WorkflowConfig holds the routing switches of the approval chain.
type WorkflowConfig struct {
	RequireExecutive         bool   `mapstructure:"require_executive"`
	PresidentBudgetThreshold string `mapstructure:"president_budget_threshold"`
	DailyVehicleLimit        int    `mapstructure:"daily_vehicle_limit"`
	ReturnCommentMinLength   int    `mapstructure:"return_comment_min_length"`
}

type AvailabilityConfig struct {
	FailOpen     bool          `mapstructure:"fail_open"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type RBACConfig struct {
	AdminEmails []string `mapstructure:"admin_emails"`
}

type NotificationConfig struct {
	MaxWorkers     int           `mapstructure:"max_workers"`
	JobQueueSize   int           `mapstructure:"job_queue_size"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
	NATSURL        string        `mapstructure:"nats_url"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// DefaultWorkflowConfig mirrors the production routing rules.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		RequireExecutive:         true,
		PresidentBudgetThreshold: "50000",
		DailyVehicleLimit:        5,
		ReturnCommentMinLength:   10,
	}
}

// PresidentThreshold parses the configured budget above which the president signs.
func (c WorkflowConfig) PresidentThreshold() decimal.Decimal {
	d, err := decimal.NewFromString(c.PresidentBudgetThreshold)
	if err != nil {
		return decimal.NewFromInt(50000)
	}
	return d
}

// ----------------- ENV LOADING -----------------

func LoadConfigFromEnv() *Config {
	wf := DefaultWorkflowConfig()
	wf.RequireExecutive = getEnvAsBool("WORKFLOW_REQUIRE_EXECUTIVE", wf.RequireExecutive)
	wf.PresidentBudgetThreshold = getEnv("WORKFLOW_PRESIDENT_BUDGET_THRESHOLD", wf.PresidentBudgetThreshold)
	wf.DailyVehicleLimit = getEnvAsInt("WORKFLOW_DAILY_VEHICLE_LIMIT", wf.DailyVehicleLimit)
	wf.ReturnCommentMinLength = getEnvAsInt("WORKFLOW_RETURN_COMMENT_MIN_LENGTH", wf.ReturnCommentMinLength)

	var adminEmails []string
	if raw := getEnv("RBAC_ADMIN_EMAILS", ""); raw != "" {
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				adminEmails = append(adminEmails, e)
			}
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("HTTP_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			RateLimitPerSec:   float64(getEnvAsInt("HTTP_RATE_LIMIT_PER_SEC", 20)),
			RateLimitBurst:    getEnvAsInt("HTTP_RATE_LIMIT_BURST", 40),
			OpenAPIValidation: getEnvAsBool("HTTP_OPENAPI_VALIDATION", true),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			JWTRefreshSecret:     getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 168*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
			ReauthTimeout:        getEnvAsDuration("REAUTH_TIMEOUT", 5*time.Second),
		},
		Workflow: wf,
		Availability: AvailabilityConfig{
			FailOpen:     getEnvAsBool("AVAILABILITY_FAIL_OPEN", true),
			QueryTimeout: getEnvAsDuration("AVAILABILITY_QUERY_TIMEOUT", 3*time.Second),
		},
		RBAC: RBACConfig{AdminEmails: adminEmails},
		Notification: NotificationConfig{
			MaxWorkers:     getEnvAsInt("NOTIFICATION_MAX_WORKERS", 4),
			JobQueueSize:   getEnvAsInt("NOTIFICATION_JOB_QUEUE_SIZE", 256),
			WorkerPoolSize: getEnvAsInt("NOTIFICATION_WORKER_POOL_SIZE", 4),
			NATSURL:        getEnv("NOTIFICATION_NATS_URL", ""),
			SubjectPrefix:  getEnv("NOTIFICATION_SUBJECT_PREFIX", "notifications.travel"),
			WebhookURL:     getEnv("NOTIFICATION_WEBHOOK_URL", ""),
			Timeout:        getEnvAsDuration("NOTIFICATION_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnvAsBool("METRICS_ENABLED", true),
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
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

	if err := c.Workflow.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("workflow config: %v", err))
	}

	if err := c.Notification.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notification config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
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
	if c.RateLimitPerSec < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values cannot be negative")
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

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if len(c.JWTRefreshSecret) < 32 {
		return errors.New("jwt_refresh_secret must be at least 32 characters")
	}
	if c.BCryptCost != 0 && (c.BCryptCost < 10 || c.BCryptCost > 15) {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *WorkflowConfig) Validate() error {
	if c.PresidentBudgetThreshold != "" {
		if _, err := decimal.NewFromString(c.PresidentBudgetThreshold); err != nil {
			return fmt.Errorf("invalid president_budget_threshold: %w", err)
		}
	}
	if c.DailyVehicleLimit < 0 {
		return errors.New("daily_vehicle_limit cannot be negative")
	}
	if c.ReturnCommentMinLength < 0 {
		return errors.New("return_comment_min_length cannot be negative")
	}
	return nil
}

func (c *NotificationConfig) Validate() error {
	if c.NATSURL != "" {
		if _, err := url.Parse(c.NATSURL); err != nil {
			return fmt.Errorf("invalid nats_url: %w", err)
		}
	}
	if c.WebhookURL != "" {
		if _, err := url.ParseRequestURI(c.WebhookURL); err != nil {
			return fmt.Errorf("invalid webhook_url: %w", err)
		}
	}
	return nil
}
