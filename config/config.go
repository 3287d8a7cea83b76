/*
Package config loads service configuration and builds the logger.

PURPOSE:
  One place for every tunable of the server and the settle CLI. Values come
  from, in increasing precedence: built-in defaults, an optional YAML file,
  LEASE_* environment variables, and finally command-line flags applied by
  the caller.

ENVIRONMENT:
  Nested keys map to upper-case names joined by underscores:
    server.port        -> LEASE_SERVER_PORT
    database.path      -> LEASE_DATABASE_PATH
    logging.level      -> LEASE_LOGGING_LEVEL
    scheduler.spec     -> LEASE_SCHEDULER_SPEC
    billing.timezone   -> LEASE_BILLING_TIMEZONE

EXAMPLE FILE:
  server:
    port: 8080
  database:
    path: ./data/lease.db
  logging:
    level: info
    format: json
  scheduler:
    enabled: true
    spec: "0 6 * * *"
  billing:
    currency: KRW
    timezone: Asia/Seoul
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"github.com/warp/lease-settlement/generic"
)

// DefaultTimezone is the billing wall clock when none is configured.
const DefaultTimezone = "Asia/Seoul"

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LEASE"

// Configuration is the full service configuration.
type Configuration struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Scheduler SchedulerConfig
	CORS      CORSConfig
	Billing   BillingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path is a SQLite file, or ":memory:".
	Path string
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputFile string `mapstructure:"output_file"`
}

// SchedulerConfig controls periodic re-settlement of every contract.
type SchedulerConfig struct {
	Enabled bool
	// Spec is a standard five-field cron expression.
	Spec string
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type BillingConfig struct {
	// Currency applies to contracts and imports that name none.
	Currency string
	// Timezone is the IANA zone whose wall clock due dates, payment times
	// and "now" are read on. "Local" uses the host zone.
	Timezone string
}

// DefaultCurrency returns the configured currency.
func (b BillingConfig) DefaultCurrency() generic.Currency {
	if b.Currency == "" {
		return generic.DefaultCurrency
	}
	return generic.Currency(strings.ToUpper(b.Currency))
}

// Location loads the billing time zone.
func (b BillingConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid billing timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("database.path", "lease.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_file", "")
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "0 6 * * *")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("billing.currency", string(generic.DefaultCurrency))
	v.SetDefault("billing.timezone", DefaultTimezone)
}

// Load reads configuration from path, which may be empty. A missing file is
// only an error when path was given explicitly.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var conf Configuration
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate rejects values the server cannot start with.
func (c *Configuration) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Scheduler.Enabled && strings.TrimSpace(c.Scheduler.Spec) == "" {
		return errors.New("scheduler spec is required when the scheduler is enabled")
	}
	if _, err := c.Billing.Location(); err != nil {
		return err
	}
	return nil
}
