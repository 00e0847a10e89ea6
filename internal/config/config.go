package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Auth      AuthConfig
	OrderDB   OrderDBConfig
	Webinar   WebinarConfig
	Discord   DiscordConfig
	SMTP      SMTPConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Audit     AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"memberhub-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// AuthConfig holds the shared secrets guarding the HTTP surface.
type AuthConfig struct {
	// AdminSecret guards the admin trigger endpoints (X-Admin-Secret).
	AdminSecret string `envconfig:"ADMIN_SECRET" default:""`
	// BotSecret guards the redemption entry points (X-Bot-Secret).
	BotSecret string `envconfig:"BOT_SECRET" default:""`
}

// OrderDBConfig holds order store settings.
type OrderDBConfig struct {
	Type string `envconfig:"ORDER_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Path string `envconfig:"ORDER_DB_PATH" default:"./data/orders.db"`
	// MySQL settings
	Host     string `envconfig:"ORDER_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"ORDER_DB_PORT" default:"3306"`
	Name     string `envconfig:"ORDER_DB_NAME" default:"memberhub"`
	User     string `envconfig:"ORDER_DB_USER" default:"root"`
	Password string `envconfig:"ORDER_DB_PASS" default:""`
}

// WebinarConfig holds the file-backed webinar ledger settings.
type WebinarConfig struct {
	CSVPath      string        `envconfig:"WEBINAR_CSV_PATH" default:"./data/webinar.csv"`
	LockPath     string        `envconfig:"WEBINAR_LOCK_PATH" default:"./data/webinar.csv.lock"`
	LockTimeout  time.Duration `envconfig:"WEBINAR_LOCK_TIMEOUT" default:"10s"`
	LockInterval time.Duration `envconfig:"WEBINAR_LOCK_INTERVAL" default:"100ms"`
}

// DiscordConfig holds the bot credentials and guild wiring.
type DiscordConfig struct {
	BotToken        string `envconfig:"DISCORD_BOT_TOKEN" default:""`
	GuildID         string `envconfig:"DISCORD_GUILD_ID" default:""`
	MemberRoleID    string `envconfig:"DISCORD_MEMBER_ROLE_ID" default:""`
	LifetimeRoleID  string `envconfig:"DISCORD_LIFETIME_ROLE_ID" default:""`
	AlertChannelID  string `envconfig:"DISCORD_ALERT_CHANNEL_ID" default:""`
	NoticeChannelID string `envconfig:"DISCORD_NOTICE_CHANNEL_ID" default:""`
	APIBase         string `envconfig:"DISCORD_API_BASE" default:"https://discord.com/api/v10"`
}

// SMTPConfig holds reminder mail settings.
type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST" default:""`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	Username string `envconfig:"SMTP_USERNAME" default:""`
	Password string `envconfig:"SMTP_PASSWORD" default:""`
	From     string `envconfig:"SMTP_FROM" default:""`
}

// RedisConfig holds the optional claim guard backend.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// SchedulerConfig holds the daily job settings.
type SchedulerConfig struct {
	Enabled bool `envconfig:"SCHEDULER_ENABLED" default:"true"`
	// Hour of day, on the offset-adjusted clock, at which the daily
	// reminder+scan pair runs.
	Hour int `envconfig:"SCHEDULER_HOUR" default:"9"`
	// TimezoneOffsetHours approximates the community's timezone for
	// calendar-date comparisons (WIB = UTC+7).
	TimezoneOffsetHours int `envconfig:"TIMEZONE_OFFSET_HOURS" default:"7"`
}

// AuditConfig holds the append-only audit log settings.
type AuditConfig struct {
	Path string `envconfig:"AUDIT_LOG_PATH" default:"./data/audit.log"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN returns the MySQL data source name for the order store.
func (d *OrderDBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// RedisAddress returns the Redis address in host:port format.
func (r *RedisConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
