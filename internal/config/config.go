// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the runtime settings, read from the environment and an
// optional .env file.
type Config struct {
	Port string `mapstructure:"PORT"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	DBHost        string `mapstructure:"DB_HOST"`
	DBPort        string `mapstructure:"DB_PORT"`
	DBUser        string `mapstructure:"DB_USER"`
	DBPassword    string `mapstructure:"DB_PASSWORD"`
	DBName        string `mapstructure:"DB_NAME"`
	DBSSLMode     string `mapstructure:"DB_SSLMODE"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	RunMigrations bool   `mapstructure:"RUN_MIGRATIONS"`

	TxTimeout   time.Duration `mapstructure:"TX_TIMEOUT"`
	LockTimeout time.Duration `mapstructure:"LOCK_TIMEOUT"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	ResetTokenTTL time.Duration `mapstructure:"RESET_TOKEN_TTL"`

	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
	AuthRatePerMinute int      `mapstructure:"AUTH_RATE_PER_MINUTE"`
	DefaultLocale     string   `mapstructure:"DEFAULT_LOCALE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DiscordBotToken  string `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordChannelID string `mapstructure:"DISCORD_CHANNEL_ID"`

	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	// .env is optional when variables come from the environment (Docker, CI).
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	for _, key := range []string{
		"JWT_SECRET", "DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID",
		"ADMIN_USERNAME", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "eventbooking")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "eventbooking.db")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("TX_TIMEOUT", 5*time.Second)
	v.SetDefault("LOCK_TIMEOUT", 2*time.Second)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("RESET_TOKEN_TTL", 10*time.Minute)
	v.SetDefault("CORS_ORIGINS", []string{"*"})
	v.SetDefault("AUTH_RATE_PER_MINUTE", 10)
	v.SetDefault("DEFAULT_LOCALE", "en")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StoreDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 bytes")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("config: TX_TIMEOUT must be positive")
	}
	if c.LockTimeout <= 0 || c.LockTimeout > c.TxTimeout {
		return fmt.Errorf("config: LOCK_TIMEOUT must be positive and not exceed TX_TIMEOUT")
	}
	if c.SessionTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL and RESET_TOKEN_TTL must be positive")
	}
	if c.AuthRatePerMinute <= 0 {
		return fmt.Errorf("config: AUTH_RATE_PER_MINUTE must be positive")
	}
	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("config: DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if c.AdminUsername != "" && (c.AdminEmail == "" || c.AdminPassword == "") {
		return fmt.Errorf("config: ADMIN_USERNAME requires ADMIN_EMAIL and ADMIN_PASSWORD")
	}
	return nil
}

// DatabaseURL builds a postgres:// URL usable by both pgxpool and
// golang-migrate.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
