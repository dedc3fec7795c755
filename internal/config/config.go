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
	Server ServerConfig
	App    AppConfig
	Bot    BotConfig
	Cache  CacheConfig
	Ledger LedgerDBConfig
	Sheet  SheetConfig
}

// ServerConfig holds settings for the ops HTTP server.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"mailshop-bot"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Ops dashboard login key
}

// BotConfig holds chat-side settings.
type BotConfig struct {
	Token        string        `envconfig:"BOT_TOKEN" default:""`
	AdminIDs     []int64       `envconfig:"BOT_ADMIN_IDS"`
	MinDeposit   int64         `envconfig:"BOT_MIN_DEPOSIT" default:"50000"`
	MaxDeposit   int64         `envconfig:"BOT_MAX_DEPOSIT" default:"10000000"`
	SettingsFile string        `envconfig:"BOT_SETTINGS_FILE" default:"./data/bot_settings.json"`
	SessionTTL   time.Duration `envconfig:"BOT_SESSION_TTL" default:"30m"`
	PollTimeout  time.Duration `envconfig:"BOT_POLL_TIMEOUT" default:"30s"`
}

// CacheConfig holds session cache settings.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LedgerDBConfig holds ledger database settings.
type LedgerDBConfig struct {
	Type string `envconfig:"LEDGER_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Path string `envconfig:"LEDGER_DB_PATH" default:"./data/ledger.db"`
	// MySQL settings
	Host     string `envconfig:"LEDGER_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"LEDGER_DB_PORT" default:"3306"`
	Name     string `envconfig:"LEDGER_DB_NAME" default:"mailshop"`
	User     string `envconfig:"LEDGER_DB_USER" default:"root"`
	Password string `envconfig:"LEDGER_DB_PASS" default:""`
}

// SheetConfig holds remote inventory sheet settings.
type SheetConfig struct {
	BaseURL     string        `envconfig:"SHEET_API_URL" default:"http://localhost:9090"`
	APIKey      string        `envconfig:"SHEET_API_KEY" default:""`
	WriteDelay  time.Duration `envconfig:"SHEET_WRITE_DELAY" default:"2s"`
	Window      time.Duration `envconfig:"SHEET_WINDOW" default:"1m"`
	WindowLimit int           `envconfig:"SHEET_WINDOW_LIMIT" default:"50"`
	MaxRetries  int           `envconfig:"SHEET_MAX_RETRIES" default:"5"`
	BatchSize   int           `envconfig:"SHEET_BATCH_SIZE" default:"3"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name.
func (d *LedgerDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsAdmin reports whether the given chat identity is on the privileged
// allow-list.
func (b *BotConfig) IsAdmin(userID int64) bool {
	for _, id := range b.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
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
