// Package config loads the service configuration from YAML, a .env file and
// the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Logger  log.Logger `yaml:"-" json:"-"`
	Logging Logging

	HTTP     HTTP
	Database Database

	Interest Interest
	Posting  Posting
}

type Logging struct {
	Format string
	Level  string
}

type HTTP struct {
	BindAddress string
}

type Database struct {
	URL      string
	MaxConns int32
}

func (cfg Database) Validate() error {
	if cfg.URL == "" {
		return errors.New("missing url")
	}
	if cfg.MaxConns < 0 {
		return fmt.Errorf("maxConns=%d cannot be negative", cfg.MaxConns)
	}
	return nil
}

// Interest holds the tenant wide interest settings.
type Interest struct {
	// PostAtPeriodEnd posts interest on the last day of a posting period
	// instead of the first day of the next.
	PostAtPeriodEnd             bool
	FinancialYearBeginningMonth int
	// TimeZone is the zone the business date is taken in.
	TimeZone string
}

func (cfg Interest) Validate() error {
	if cfg.FinancialYearBeginningMonth < 1 || cfg.FinancialYearBeginningMonth > 12 {
		return fmt.Errorf("financialYearBeginningMonth=%d must be between 1 and 12", cfg.FinancialYearBeginningMonth)
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return fmt.Errorf("timeZone: %v", err)
	}
	return nil
}

// Location is the time zone business dates are taken in.
func (cfg Interest) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Posting configures the scheduled interest posting, maturity and due
// charge jobs.
type Posting struct {
	Enabled bool
	// Schedules are standard five field cron expressions. An empty
	// MaturitySchedule or ChargeSchedule turns that job off.
	Schedule         string
	MaturitySchedule string
	ChargeSchedule   string

	BatchSize        int
	MaxRetries       int
	MaxRetryInterval time.Duration
}

func (cfg Posting) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("schedule %q: %v", cfg.Schedule, err)
	}
	if cfg.MaturitySchedule != "" {
		if _, err := cron.ParseStandard(cfg.MaturitySchedule); err != nil {
			return fmt.Errorf("maturitySchedule %q: %v", cfg.MaturitySchedule, err)
		}
	}
	if cfg.ChargeSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ChargeSchedule); err != nil {
			return fmt.Errorf("chargeSchedule %q: %v", cfg.ChargeSchedule, err)
		}
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batchSize=%d must be positive", cfg.BatchSize)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("maxRetries=%d cannot be negative", cfg.MaxRetries)
	}
	if cfg.MaxRetryInterval < 0 {
		return fmt.Errorf("maxRetryInterval=%v cannot be negative", cfg.MaxRetryInterval)
	}
	return nil
}

func Empty() *Config {
	return &Config{
		Logger: log.NewNopLogger(),
		HTTP: HTTP{
			BindAddress: ":8080",
		},
		Database: Database{
			MaxConns: 10,
		},
		Interest: Interest{
			FinancialYearBeginningMonth: 1,
			TimeZone:                    "UTC",
		},
		Posting: Posting{
			Enabled:          true,
			Schedule:         "0 1 * * *",
			MaturitySchedule: "30 0 * * *",
			ChargeSchedule:   "15 0 * * *",
			BatchSize:        100,
			MaxRetries:       3,
			MaxRetryInterval: 5 * time.Second,
		},
	}
}

// Load reads an optional .env file and then the config file at path. An
// empty path uses the defaults. Environment variables override both.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %v", err)
	}
	return FromFile(path)
}

func FromFile(path string) (*Config, error) {
	cfg := Empty()
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v", path, err)
		}
		return Read(bs)
	}
	cfg.applyEnv()
	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Read(data []byte) (*Config, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	if err := vip.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("problem reading config: %v", err)
	}

	cfg := Empty()
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("problem unmarshaling config: %v", err)
	}

	cfg.applyEnv()
	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("HTTP_BIND_ADDRESS"); v != "" {
		cfg.HTTP.BindAddress = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func setupLogger(cfg *Config) *Config {
	if strings.EqualFold(cfg.Logging.Format, "json") {
		cfg.Logger = log.NewJSONLogger(os.Stderr)
	} else {
		cfg.Logger = log.NewLogfmtLogger(os.Stderr)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		cfg.Logger = level.NewFilter(cfg.Logger, level.AllowDebug())
	case "warn":
		cfg.Logger = level.NewFilter(cfg.Logger, level.AllowWarn())
	case "error":
		cfg.Logger = level.NewFilter(cfg.Logger, level.AllowError())
	default:
		cfg.Logger = level.NewFilter(cfg.Logger, level.AllowInfo())
	}

	cfg.Logger = log.With(cfg.Logger, "ts", log.DefaultTimestampUTC)
	cfg.Logger = log.With(cfg.Logger, "caller", log.DefaultCaller)

	return cfg
}

// Validate checks a Config fields and performs various confirmations
// their values conform to expectations.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("missing Config")
	}

	if cfg.HTTP.BindAddress == "" {
		return errors.New("http: missing bindAddress")
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %v", err)
	}
	if err := cfg.Interest.Validate(); err != nil {
		return fmt.Errorf("interest: %v", err)
	}
	if err := cfg.Posting.Validate(); err != nil {
		return fmt.Errorf("posting: %v", err)
	}
	return nil
}
