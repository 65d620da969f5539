// Package config loads and validates roomwatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/roomwatch/internal/listing"
	"github.com/JakeFAU/roomwatch/internal/logging"
)

// Environment variables that override the freshness window. The first one
// holding a number wins over --fresh-window and the config file; blank
// values count as unset.
var freshWindowEnv = []string{"ROOMWATCH_ALERT_WINDOW_MINUTES", "TIME_WINDOW_MINUTES"}

// Config captures all knobs for a run.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Store    StoreConfig    `mapstructure:"store"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Warnings lists ignored overrides, for the caller to log.
	Warnings []string `mapstructure:"-"`
}

// SourceConfig controls how the board is fetched and parsed.
type SourceConfig struct {
	URL               string `mapstructure:"url"`
	Origin            string `mapstructure:"origin"`
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	Headless          bool   `mapstructure:"headless"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	WaitSelector      string `mapstructure:"wait_selector"`
	Selector          string `mapstructure:"selector"`
	Timezone          string `mapstructure:"timezone"`
}

// StoreConfig selects where the history CSV lives.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
	Bucket   string `mapstructure:"bucket"`
	Object   string `mapstructure:"object"`
}

// AlertConfig governs freshness selection and message format.
type AlertConfig struct {
	WindowMinutes  int      `mapstructure:"window_minutes"`
	ListingTypes   []string `mapstructure:"listing_types"`
	Header         string   `mapstructure:"header"`
	Channel        string   `mapstructure:"channel"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	ChatID  string `mapstructure:"chat_id"`
	APIBase string `mapstructure:"api_base"`
}

// PubSubConfig names the topic alerts are published to.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LedgerConfig enables exactly-once alerting.
type LedgerConfig struct {
	Provider      string `mapstructure:"provider"`
	DSN           string `mapstructure:"dsn"`
	Table         string `mapstructure:"table"`
	MaxConns      int32  `mapstructure:"max_conns"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	TTLHours      int    `mapstructure:"ttl_hours"`
}

// MetricsConfig points at an optional Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig controls zap output.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Option adjusts loading.
type Option func(*loader)

type loader struct {
	v           *viper.Viper
	dotenv      []string
	applies     []func(*viper.Viper)
	freshWindow *int
}

// WithDotEnv loads the given files into the environment before resolving.
// Without this option ".env" is tried.
func WithDotEnv(files ...string) Option {
	return func(l *loader) {
		l.dotenv = files
	}
}

// WithStorePath overrides store.path, as the --csv flag does.
func WithStorePath(path string) Option {
	return func(l *loader) {
		l.applies = append(l.applies, func(v *viper.Viper) {
			v.Set("store.path", path)
		})
	}
}

// WithFreshWindow overrides alert.window_minutes unless an environment
// override is present.
func WithFreshWindow(minutes int) Option {
	return func(l *loader) {
		l.freshWindow = &minutes
	}
}

// Load builds a Config from defaults, an optional file, .env and the
// environment.
func Load(path string, opts ...Option) (Config, error) {
	l := &loader{v: viper.New(), dotenv: []string{".env"}}
	for _, opt := range opts {
		opt(l)
	}

	for _, file := range l.dotenv {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	v := l.v
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	// Read before the environment is attached so only file and defaults count.
	base, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(v.Get("alert.window_minutes"))))
	if err != nil {
		return Config{}, fmt.Errorf("alert.window_minutes: %w", err)
	}

	v.SetEnvPrefix("ROOMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	for _, apply := range l.applies {
		apply(v)
	}
	window, warnings := resolveFreshWindow(base, l.freshWindow)
	v.Set("alert.window_minutes", window)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Warnings = warnings

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// resolveFreshWindow applies the window precedence: a numeric environment
// override, then the flag, then base. Unusable overrides are reported and
// skipped.
func resolveFreshWindow(base int, flag *int) (int, []string) {
	window := base
	if flag != nil {
		window = *flag
	}
	var warnings []string
	for _, name := range freshWindowEnv {
		raw, ok := os.LookupEnv(name)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a whole number of minutes", name, raw))
			continue
		}
		return n, warnings
	}
	return window, warnings
}

// bindLegacyEnv keeps the variable names used by existing deployments.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"logging.level":        {"logging.level", "ROOMWATCH_LOGGING_LEVEL", "LOG_LEVEL"},
		"telegram.token":       {"telegram.token", "ROOMWATCH_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"},
		"telegram.chat_id":     {"telegram.chat_id", "ROOMWATCH_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", "https://woko.ch/en/zimmer-in-zuerich")
	v.SetDefault("source.origin", "https://woko.ch")
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("source.headless", false)
	v.SetDefault("source.nav_timeout_seconds", 45)
	v.SetDefault("source.timezone", "Europe/Zurich")
	v.SetDefault("source.user_agent", "")
	v.SetDefault("source.wait_selector", "")
	v.SetDefault("source.selector", "")
	v.SetDefault("store.provider", "local")
	v.SetDefault("store.path", "woko_listings.csv")
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.object", "woko_listings.csv")
	v.SetDefault("alert.window_minutes", 5)
	v.SetDefault("alert.listing_types", []string{string(listing.TenantWanted)})
	v.SetDefault("alert.header", "")
	v.SetDefault("alert.channel", "telegram")
	v.SetDefault("alert.timeout_seconds", 20)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("ledger.provider", "none")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.table", "alerted_listings")
	v.SetDefault("ledger.max_conns", 2)
	v.SetDefault("ledger.redis_addr", "")
	v.SetDefault("ledger.redis_password", "")
	v.SetDefault("ledger.redis_db", 0)
	v.SetDefault("ledger.ttl_hours", 0)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "roomwatch")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if c.Source.Headless && c.Source.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("source.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	if _, err := time.LoadLocation(c.Source.Timezone); err != nil {
		return fmt.Errorf("source.timezone: %w", err)
	}

	switch c.Store.Provider {
	case "local":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the local store")
		}
	case "gcs":
		if c.Store.Bucket == "" || c.Store.Object == "" {
			return fmt.Errorf("store.bucket and store.object are required for the gcs store")
		}
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}

	if _, err := c.ListingTypes(); err != nil {
		return err
	}
	switch c.Alert.Channel {
	case "telegram", "pubsub", "none":
	default:
		return fmt.Errorf("unknown alert.channel %q", c.Alert.Channel)
	}
	if c.Alert.TimeoutSeconds <= 0 {
		return fmt.Errorf("alert.timeout_seconds must be > 0")
	}

	switch c.Ledger.Provider {
	case "none", "memory":
	case "postgres":
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn is required for the postgres ledger")
		}
	case "redis":
		if c.Ledger.RedisAddr == "" {
			return fmt.Errorf("ledger.redis_addr is required for the redis ledger")
		}
	default:
		return fmt.Errorf("unknown ledger.provider %q", c.Ledger.Provider)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// FreshWindow returns the freshness window as a duration.
func (c Config) FreshWindow() time.Duration {
	return time.Duration(c.Alert.WindowMinutes) * time.Minute
}

// ListingTypes parses the watched types. An empty list watches every type.
func (c Config) ListingTypes() ([]listing.Type, error) {
	types := make([]listing.Type, 0, len(c.Alert.ListingTypes))
	for _, raw := range c.Alert.ListingTypes {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		t, err := listing.ParseType(raw)
		if err != nil {
			return nil, fmt.Errorf("alert.listing_types: %w", err)
		}
		types = append(types, t)
	}
	return types, nil
}

// SourceTimeout returns the fetch timeout.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// AlertTimeout returns the per-alert delivery timeout.
func (c Config) AlertTimeout() time.Duration {
	return time.Duration(c.Alert.TimeoutSeconds) * time.Second
}

// LedgerTTL returns how long ledger marks live; zero keeps them forever.
func (c Config) LedgerTTL() time.Duration {
	return time.Duration(c.Ledger.TTLHours) * time.Hour
}
