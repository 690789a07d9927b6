// Package config loads application configuration from environment variables
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "CASEWATCH"

// Config holds the validated application configuration.
type Config struct {
	ListenAddr string
	DBPath     string

	JWTSecret  string
	AdminToken string

	CourtAPIBaseURL string
	CourtAPIKey     string
	CourtAPIRate    float64
	CourtAPIBurst   int

	BrevoAPIKey  string
	BrevoBaseURL string
	MailFrom     string
	MailFromName string

	AdminAlertEmail     string
	LowBalanceThreshold int64

	ResearchAllotment   int64
	ExtractionAllotment int64

	CycleTimeout time.Duration

	LogLevel       string
	LogDevelopment bool
}

// HasMailer reports whether outbound e-mail is configured.
func (c *Config) HasMailer() bool {
	return c.BrevoAPIKey != "" && c.MailFrom != ""
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("db_path", "casewatch.db")
	v.SetDefault("court_api.rate", 5.0)
	v.SetDefault("court_api.burst", 5)
	v.SetDefault("brevo.base_url", "https://api.brevo.com")
	v.SetDefault("mail.from_name", "Casewatch")
	v.SetDefault("alerts.low_balance_threshold", 50000)
	v.SetDefault("credits.research_allotment", 100000)
	v.SetDefault("credits.extraction_allotment", 100000)
	v.SetDefault("poll.cycle_timeout", "10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	return v
}

// Load reads configuration and returns a validated Config.
// CASEWATCH_JWT_SECRET and CASEWATCH_COURT_API_BASE_URL are required. When
// CASEWATCH_CONFIG names a file (yaml, json, or toml), its values sit beneath
// environment variables. Nested keys map to env names by replacing "." with
// "_", e.g. court_api.key is CASEWATCH_COURT_API_KEY.
func Load() (*Config, error) {
	v := newViper()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ListenAddr:      v.GetString("listen_addr"),
		DBPath:          v.GetString("db_path"),
		JWTSecret:       v.GetString("jwt_secret"),
		AdminToken:      v.GetString("admin_token"),
		CourtAPIBaseURL: v.GetString("court_api.base_url"),
		CourtAPIKey:     v.GetString("court_api.key"),
		BrevoAPIKey:     v.GetString("brevo.api_key"),
		BrevoBaseURL:    v.GetString("brevo.base_url"),
		MailFrom:        v.GetString("mail.from"),
		MailFromName:    v.GetString("mail.from_name"),
		AdminAlertEmail: v.GetString("alerts.admin_email"),
		LogLevel:        strings.ToLower(v.GetString("log.level")),
		LogDevelopment:  v.GetBool("log.development"),
	}

	var err error
	if cfg.CourtAPIRate, err = floatKey(v, "court_api.rate"); err != nil {
		return nil, err
	}
	if cfg.CourtAPIBurst, err = intKey(v, "court_api.burst"); err != nil {
		return nil, err
	}
	if cfg.LowBalanceThreshold, err = int64Key(v, "alerts.low_balance_threshold"); err != nil {
		return nil, err
	}
	if cfg.ResearchAllotment, err = int64Key(v, "credits.research_allotment"); err != nil {
		return nil, err
	}
	if cfg.ExtractionAllotment, err = int64Key(v, "credits.extraction_allotment"); err != nil {
		return nil, err
	}
	if cfg.CycleTimeout, err = durationKey(v, "poll.cycle_timeout"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("CASEWATCH_JWT_SECRET is required")
	}
	if c.CourtAPIBaseURL == "" {
		return errors.New("CASEWATCH_COURT_API_BASE_URL is required")
	}
	if u, err := url.Parse(c.CourtAPIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CASEWATCH_COURT_API_BASE_URL is not an absolute URL: %q", c.CourtAPIBaseURL)
	}
	if c.CourtAPIRate <= 0 {
		return fmt.Errorf("CASEWATCH_COURT_API_RATE must be positive, got %v", c.CourtAPIRate)
	}
	if c.CourtAPIBurst <= 0 {
		return fmt.Errorf("CASEWATCH_COURT_API_BURST must be positive, got %d", c.CourtAPIBurst)
	}
	if c.MailFrom != "" {
		if _, err := mail.ParseAddress(c.MailFrom); err != nil {
			return fmt.Errorf("CASEWATCH_MAIL_FROM is not a valid address: %w", err)
		}
	}
	if c.AdminAlertEmail != "" {
		if _, err := mail.ParseAddress(c.AdminAlertEmail); err != nil {
			return fmt.Errorf("CASEWATCH_ALERTS_ADMIN_EMAIL is not a valid address: %w", err)
		}
	}
	if c.LowBalanceThreshold < 0 || c.ResearchAllotment < 0 || c.ExtractionAllotment < 0 {
		return errors.New("credit thresholds and allotments must not be negative")
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("CASEWATCH_POLL_CYCLE_TIMEOUT must be positive, got %s", c.CycleTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("CASEWATCH_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func intKey(v *viper.Viper, key string) (int, error) {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %v: %w", envName(key), v.Get(key), err)
	}
	return n, nil
}

func int64Key(v *viper.Viper, key string) (int64, error) {
	n, err := cast.ToInt64E(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %v: %w", envName(key), v.Get(key), err)
	}
	return n, nil
}

func floatKey(v *viper.Viper, key string) (float64, error) {
	f, err := cast.ToFloat64E(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid number %v: %w", envName(key), v.Get(key), err)
	}
	return f, nil
}

func durationKey(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", envName(key), raw, err)
	}
	return d, nil
}
