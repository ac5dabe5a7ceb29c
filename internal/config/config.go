// Package config loads runtime settings from defaults, a .env file, an
// optional YAML file and SUITECAL_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SUITECAL_"

// Config is the full set of runtime settings.
type Config struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	DBDriver    string `yaml:"db_driver" validate:"oneof=sqlite postgres"`
	DBPath      string `yaml:"db_path" validate:"required_if=DBDriver sqlite"`
	DatabaseURL string `yaml:"database_url" validate:"required_if=DBDriver postgres"`

	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=text json"`

	// DisplayOffset is a Go duration such as "-8h" or "5h30m". Times are
	// shown and scheduled at this fixed offset from UTC.
	DisplayOffset string `yaml:"display_offset" validate:"required"`
	DisplayZone   string `yaml:"display_zone" validate:"required"`
	WeekStart     string `yaml:"week_start" validate:"oneof=sunday monday"`
	HorizonWeeks  int    `yaml:"horizon_weeks" validate:"min=1,max=104"`

	DueSweep       string   `yaml:"due_sweep" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,url"`
	WriteRateLimit int      `yaml:"write_rate_limit" validate:"min=0"`

	// TrustProxy makes client addresses come from CF-Connecting-IP and
	// X-Forwarded-For. Enable only when a reverse proxy sets them.
	TrustProxy bool `yaml:"trust_proxy"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:           "8080",
		DBDriver:       "sqlite",
		DBPath:         "suitecal.db",
		LogLevel:       "info",
		LogFormat:      "text",
		DisplayOffset:  "-8h",
		DisplayZone:    "PST",
		WeekStart:      "sunday",
		HorizonWeeks:   8,
		DueSweep:       "@every 1m",
		WriteRateLimit: 60,
	}
}

// Load builds a Config. path names a YAML file; when empty SUITECAL_CONFIG
// is consulted, and when that is empty too no file is read. A missing .env
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":           &c.Port,
		"DB_DRIVER":      &c.DBDriver,
		"DB_PATH":        &c.DBPath,
		"DATABASE_URL":   &c.DatabaseURL,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_FORMAT":     &c.LogFormat,
		"DISPLAY_OFFSET": &c.DisplayOffset,
		"DISPLAY_ZONE":   &c.DisplayZone,
		"WEEK_START":     &c.WeekStart,
		"DUE_SWEEP":      &c.DueSweep,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"HORIZON_WEEKS":    &c.HorizonWeeks,
		"WRITE_RATE_LIMIT": &c.WriteRateLimit,
	}
	for key, dst := range ints {
		v, ok := lookup(envPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(envPrefix + "TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sTRUST_PROXY: %w", envPrefix, err)
		}
		c.TrustProxy = b
	}

	if v, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	return nil
}

// Validate checks field constraints, the display offset and the sweep
// schedule.
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(c.DBDriver)
	c.WeekStart = strings.ToLower(c.WeekStart)

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s fails %q (got %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}

	offset, err := time.ParseDuration(c.DisplayOffset)
	if err != nil {
		return fmt.Errorf("config: display_offset: %w", err)
	}
	if offset <= -24*time.Hour || offset >= 24*time.Hour {
		return fmt.Errorf("config: display_offset %s out of range", offset)
	}
	if _, err := cron.ParseStandard(c.DueSweep); err != nil {
		return fmt.Errorf("config: due_sweep: %w", err)
	}
	return nil
}

// Location is the fixed display zone built from DisplayZone and
// DisplayOffset. Call after Validate.
func (c *Config) Location() *time.Location {
	offset, _ := time.ParseDuration(c.DisplayOffset)
	return time.FixedZone(c.DisplayZone, int(offset/time.Second))
}

// FirstWeekday is the weekday grid windows start on.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
