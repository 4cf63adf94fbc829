package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server       ServerConfig       `envconfig:"SERVER"`
	Database     DatabaseConfig     `envconfig:"DB"`
	Redis        RedisConfig        `envconfig:"REDIS"`
	Storage      StorageConfig      `envconfig:"STORAGE"`
	SMTP         SMTPConfig         `envconfig:"SMTP"`
	LLM          LLMConfig          `envconfig:"LLM"`
	Admin        AdminConfig        `envconfig:"ADMIN"`
	Teams        TeamsConfig        `envconfig:"TEAMS"`
	Zoom         ZoomConfig         `envconfig:"ZOOM"`
	Gmeet        GmeetConfig        `envconfig:"GMEET"`
	Reconcile    ReconcileConfig    `envconfig:"RECONCILE"`
	Jobs         JobsConfig         `envconfig:"JOBS"`
	Poller       PollerConfig       `envconfig:"POLLER"`
	TokenRefresh TokenRefreshConfig `envconfig:"TOKEN_REFRESH"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// PublicURL is where providers deliver webhooks
	PublicURL string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	// Upper bound on webhook notifications processed concurrently in the background
	WebhookConcurrency int `envconfig:"WEBHOOK_CONCURRENCY" default:"8"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host          string `envconfig:"HOST" default:"localhost"`
	Port          string `envconfig:"PORT" default:"5432"`
	User          string `envconfig:"USER" default:"postgres"`
	Password      string `envconfig:"PASSWORD" default:"postgres"`
	Name          string `envconfig:"NAME" default:"meeting_sync"`
	SSLMode       string `envconfig:"SSLMODE" default:"disable"`
	MaxConns      int    `envconfig:"MAX_CONNS" default:"25"`
	MinConns      int    `envconfig:"MIN_CONNS" default:"5"`
	AutoMigrate   bool   `envconfig:"AUTO_MIGRATE" default:"false"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"true"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	// ArchiveWebhooks stores every raw webhook body in the bucket when set
	ArchiveWebhooks bool   `envconfig:"ARCHIVE_WEBHOOKS" default:"false"`
	Endpoint        string `envconfig:"ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"BUCKET" default:"meeting-sync"`
	UseSSL          bool   `envconfig:"USE_SSL" default:"false"`
}

// SMTPConfig holds outgoing mail configuration for invitation emails
type SMTPConfig struct {
	Enabled     bool          `envconfig:"ENABLED" default:"false"`
	Host        string        `envconfig:"HOST" default:"localhost"`
	Port        int           `envconfig:"PORT" default:"587"`
	Username    string        `envconfig:"USERNAME"`
	Password    string        `envconfig:"PASSWORD"`
	From        string        `envconfig:"FROM" default:"no-reply@localhost"`
	FrontendURL string        `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"30s"`
}

// LLMConfig holds the chat-completion provider configuration
type LLMConfig struct {
	Provider  string        `envconfig:"PROVIDER" default:"groq"`
	BaseURL   string        `envconfig:"BASE_URL" default:"https://api.groq.com"`
	APIKey    string        `envconfig:"API_KEY"`
	Model     string        `envconfig:"MODEL" default:"llama-3.3-70b-versatile"`
	MaxTokens int           `envconfig:"MAX_TOKENS" default:"4000"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"60s"`
}

// AdminConfig protects the operator endpoints
type AdminConfig struct {
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	Issuer      string        `envconfig:"ISSUER" default:"meeting-sync"`
	TokenExpiry time.Duration `envconfig:"TOKEN_EXPIRY" default:"24h"`
}

// TeamsConfig holds Microsoft Graph configuration
type TeamsConfig struct {
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	TenantID     string `envconfig:"TENANT_ID" default:"common"`
	ClientState  string `envconfig:"CLIENT_STATE"`
	GraphBaseURL string `envconfig:"GRAPH_BASE_URL" default:"https://graph.microsoft.com/v1.0"`
}

// ZoomConfig holds Zoom API and webhook configuration
type ZoomConfig struct {
	ClientID           string `envconfig:"CLIENT_ID"`
	ClientSecret       string `envconfig:"CLIENT_SECRET"`
	WebhookSecretToken string `envconfig:"WEBHOOK_SECRET_TOKEN"`
	VerificationToken  string `envconfig:"VERIFICATION_TOKEN"`
	APIBaseURL         string `envconfig:"API_BASE_URL" default:"https://api.zoom.us/v2"`
}

// GmeetConfig holds Google Calendar configuration
type GmeetConfig struct {
	ClientID          string `envconfig:"CLIENT_ID"`
	ClientSecret      string `envconfig:"CLIENT_SECRET"`
	VerificationToken string `envconfig:"VERIFICATION_TOKEN"`
	CalendarBaseURL   string `envconfig:"CALENDAR_BASE_URL" default:"https://www.googleapis.com/calendar/v3"`
	MeetBaseURL       string `envconfig:"MEET_BASE_URL" default:"https://meet.googleapis.com/v2"`
	DriveBaseURL      string `envconfig:"DRIVE_BASE_URL" default:"https://www.googleapis.com/drive/v3"`
	EventsBaseURL     string `envconfig:"EVENTS_BASE_URL" default:"https://workspaceevents.googleapis.com/v1"`
	// PubSubTopic receives Meet conference events; empty leaves it to polling
	PubSubTopic string `envconfig:"PUBSUB_TOPIC"`
}

// ReconcileConfig holds the recurring series windows
type ReconcileConfig struct {
	LeadingWindow  time.Duration `envconfig:"LEADING_WINDOW" default:"336h"`
	TrailingWindow time.Duration `envconfig:"TRAILING_WINDOW" default:"336h"`
	Concurrency    int           `envconfig:"CONCURRENCY" default:"4"`
}

// JobsConfig holds outbox dispatcher settings
type JobsConfig struct {
	Workers      int           `envconfig:"WORKERS" default:"2"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"10"`
	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	StaleAfter   time.Duration `envconfig:"STALE_AFTER" default:"15m"`
}

// PollerConfig holds report polling settings
type PollerConfig struct {
	Enabled     bool          `envconfig:"ENABLED" default:"true"`
	Interval    time.Duration `envconfig:"INTERVAL" default:"15m"`
	Concurrency int           `envconfig:"CONCURRENCY" default:"4"`
	// Provider subscriptions and push channels are renewed this often
	RenewEvery time.Duration `envconfig:"RENEW_EVERY" default:"24h"`
}

// TokenRefreshConfig controls per-connection token refresh
type TokenRefreshConfig struct {
	Lead     time.Duration `envconfig:"LEAD" default:"5m"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"50m"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Environment == "production" && c.Admin.JWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required in production")
	}
	if c.Server.Environment == "production" && c.Database.AutoMigrate {
		return fmt.Errorf("DB_AUTO_MIGRATE must be disabled in production")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("JOBS_WORKERS must be at least 1")
	}
	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("JOBS_MAX_ATTEMPTS must be at least 1")
	}
	if c.Reconcile.Concurrency < 1 {
		return fmt.Errorf("RECONCILE_CONCURRENCY must be at least 1")
	}
	if c.Server.WebhookConcurrency < 1 {
		return fmt.Errorf("SERVER_WEBHOOK_CONCURRENCY must be at least 1")
	}
	if c.SMTP.Enabled && c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is required when SMTP is enabled")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
