package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingUsername is returned when GITHUB_USERNAME is required but unset.
var ErrMissingUsername = errors.New("GITHUB_USERNAME is required")

// DefaultEnvFile is read, when present, before the process environment.
const DefaultEnvFile = ".env"

// Config holds all configuration for the application
type Config struct {
	GitHubToken      string
	Username         string
	GitHubAPIURL     string
	ContributionsURL string
	ListenAddr       string
	LogLevel         string
	CacheTTL         time.Duration
	DetailWindow     time.Duration
	PruneInterval    time.Duration
	Database         DatabaseConfig
}

// DatabaseConfig configures the optional Postgres snapshot store.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database host was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s port=%s host=%s sslmode=%s",
		d.User, d.Password, d.Name, d.Port, d.Host, d.SSLMode,
	)
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

// Load loads configuration from envFile (if it exists) and the environment.
func (c *Config) Load(envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("GITHUB_API_URL", "https://api.github.com/")
	v.SetDefault("CONTRIBUTIONS_API_URL", "https://github-contributions-api.jogruber.de")
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_TTL", "24h")
	v.SetDefault("DETAIL_WINDOW", "720h")
	v.SetDefault("PRUNE_INTERVAL", "1h")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	c.GitHubToken = v.GetString("GITHUB_TOKEN")
	c.Username = v.GetString("GITHUB_USERNAME")
	c.GitHubAPIURL = v.GetString("GITHUB_API_URL")
	c.ContributionsURL = v.GetString("CONTRIBUTIONS_API_URL")
	c.ListenAddr = v.GetString("LISTEN_ADDR")
	c.LogLevel = v.GetString("LOG_LEVEL")

	var err error
	if c.CacheTTL, err = parseDuration(v, "CACHE_TTL"); err != nil {
		return err
	}
	if c.DetailWindow, err = parseDuration(v, "DETAIL_WINDOW"); err != nil {
		return err
	}
	if c.PruneInterval, err = parseDuration(v, "PRUNE_INTERVAL"); err != nil {
		return err
	}

	c.Database = DatabaseConfig{
		Host:         v.GetString("POSTGRES_HOST"),
		Port:         v.GetString("POSTGRES_PORT"),
		User:         v.GetString("POSTGRES_USER"),
		Password:     v.GetString("POSTGRES_PASSWORD"),
		Name:         v.GetString("POSTGRES_DB"),
		SSLMode:      v.GetString("POSTGRES_SSLMODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}
	if c.Database.ConnMaxLifetime, err = parseDuration(v, "DB_CONN_MAX_LIFETIME"); err != nil {
		return err
	}

	return nil
}

// RequireUsername fails when no default GitHub user is configured.
func (c *Config) RequireUsername() error {
	if c.Username == "" {
		return ErrMissingUsername
	}
	return nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
