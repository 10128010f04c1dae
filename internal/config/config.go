package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Database types
const (
	PostgresDbType = "postgres"
	MysqlDbType    = "mysql"
	SqliteDbType   = "sqlite"
)

// Log level constants
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Log type constants
const (
	LogTypeConsole = "console"
	LogTypeFile    = "file"
)

const devJWTSecret = "dev-secret-only"

type Config struct {
	Database      DatabaseSettings
	HTTP          HTTPSettings
	Auth          AuthSettings
	Logger        LoggerSettings
	SMTP          SMTPSettings
	Push          PushSettings
	WebAuthn      WebAuthnSettings
	Redis         RedisSettings
	Dashboard     DashboardSettings
	Notifications NotificationSettings
	Seed          SeedSettings
}

// DatabaseSettings selects the GORM dialector and its DSN.
type DatabaseSettings struct {
	Type string `validate:"required,oneof=postgres mysql sqlite"`
	DSN  string `validate:"required"`
}

type HTTPSettings struct {
	Port           string `validate:"required,numeric"`
	PublicURL      string `validate:"required,url"`
	AllowedOrigins []string
}

type AuthSettings struct {
	JWTSecret    string        `validate:"required,min=8"`
	TokenTTL     time.Duration `validate:"required"`
	SecureCookie bool
	InviteTTL    time.Duration `validate:"required"`
}

// LoggerSettings holds configuration settings for logging, including log level, type and file path
type LoggerSettings struct {
	LogLevel   string `validate:"required,oneof=debug info warning error"`
	LogType    string `validate:"required,oneof=console file"`
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// SMTPSettings is optional; an empty Host disables outgoing email.
type SMTPSettings struct {
	Host     string
	Port     int `validate:"omitempty,min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"omitempty,email"`
}

// PushSettings holds the VAPID key pair used to sign web push requests.
type PushSettings struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type WebAuthnSettings struct {
	RPID          string   `validate:"required"`
	RPDisplayName string   `validate:"required"`
	RPOrigins     []string `validate:"required,min=1,dive,url"`
}

type RedisSettings struct {
	URL string
}

type DashboardSettings struct {
	// TargetRatio is the highest acceptable riders-per-coach ratio.
	TargetRatio  float64       `validate:"gt=0"`
	PollInterval time.Duration `validate:"required"`
}

type NotificationSettings struct {
	Enabled  bool
	Interval time.Duration `validate:"required"`
}

type SeedSettings struct {
	AdminEmail    string
	AdminPassword string
}

// Validate checks that all fields in LoggerSettings are valid
func (s *LoggerSettings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("validation failed for LoggerSettings: %w", err)
	}

	if s.LogType == LogTypeFile {
		if s.FilePath == "" {
			return fmt.Errorf("file path is required for file logger")
		}
		if s.MaxSize < 1 || s.MaxSize > 100 {
			return fmt.Errorf("max size must be between 1 and 100 MB")
		}
		if s.MaxBackups < 1 || s.MaxBackups > 10 {
			return fmt.Errorf("max backups must be between 1 and 10")
		}
		if s.MaxAge < 1 || s.MaxAge > 365 {
			return fmt.Errorf("max age must be between 1 and 365 days")
		}
	}
	return nil
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	validate := validator.New()
	for name, s := range map[string]any{
		"database":      &c.Database,
		"http":          &c.HTTP,
		"auth":          &c.Auth,
		"smtp":          &c.SMTP,
		"webauthn":      &c.WebAuthn,
		"dashboard":     &c.Dashboard,
		"notifications": &c.Notifications,
	} {
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("invalid %s settings: %w", name, err)
		}
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return fmt.Errorf("invalid push settings: both VAPID keys must be set together")
	}
	return nil
}

// PushEnabled reports whether web push delivery is configured.
func (c *Config) PushEnabled() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}

// Load reads configuration from the environment, seeding it from a .env file when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	}

	publicURL := getEnv("PUBLIC_URL", "http://localhost:8080")

	cfg := &Config{
		Database: DatabaseSettings{
			Type: getEnv("DB_TYPE", PostgresDbType),
			DSN:  os.Getenv("DATABASE_DSN"),
		},
		HTTP: HTTPSettings{
			Port:           getEnv("APP_PORT", "8080"),
			PublicURL:      publicURL,
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", publicURL)),
		},
		Auth: AuthSettings{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			TokenTTL:     getDuration("TOKEN_TTL", 24*time.Hour),
			SecureCookie: getBool("SECURE_COOKIE", false),
			InviteTTL:    getDuration("INVITE_TTL", 7*24*time.Hour),
		},
		Logger: LoggerSettings{
			LogLevel:   getEnv("LOG_LEVEL", LogLevelInfo),
			LogType:    getEnv("LOG_TYPE", LogTypeConsole),
			FilePath:   os.Getenv("LOG_FILE"),
			MaxSize:    getInt("LOG_MAX_SIZE", 10),
			MaxBackups: getInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getInt("LOG_MAX_AGE", 28),
		},
		SMTP: SMTPSettings{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Push: PushSettings{
			VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subscriber:      getEnv("VAPID_SUBSCRIBER", "mailto:admin@example.com"),
		},
		WebAuthn: WebAuthnSettings{
			RPID:          getEnv("WEBAUTHN_RP_ID", "localhost"),
			RPDisplayName: getEnv("WEBAUTHN_RP_NAME", "Clubhub"),
			RPOrigins:     splitList(getEnv("WEBAUTHN_ORIGINS", publicURL)),
		},
		Redis: RedisSettings{
			URL: os.Getenv("REDIS_URL"),
		},
		Dashboard: DashboardSettings{
			TargetRatio:  getFloat("DASHBOARD_TARGET_RATIO", 6),
			PollInterval: getDuration("DASHBOARD_POLL_INTERVAL", 10*time.Second),
		},
		Notifications: NotificationSettings{
			Enabled:  getBool("NOTIFICATIONS_ENABLED", true),
			Interval: getDuration("NOTIFICATIONS_INTERVAL", time.Minute),
		},
		Seed: SeedSettings{
			AdminEmail:    os.Getenv("SEED_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
		},
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN not set in environment")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Println("⚠️ JWT_SECRET not set, falling back to development secret")
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
