package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearWindowEnv(t *testing.T) {
	t.Helper()
	for _, name := range freshWindowEnv {
		if prev, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, prev) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearWindowEnv(t)

	cfg, err := Load("", WithDotEnv())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.URL != "https://woko.ch/en/zimmer-in-zuerich" {
		t.Fatalf("unexpected source url %q", cfg.Source.URL)
	}
	if cfg.Store.Provider != "local" || cfg.Store.Path != "woko_listings.csv" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if got := cfg.FreshWindow(); got != 5*time.Minute {
		t.Fatalf("expected 5m window, got %v", got)
	}
	types, err := cfg.ListingTypes()
	if err != nil {
		t.Fatalf("ListingTypes() error = %v", err)
	}
	if len(types) != 1 || types[0] != listing.TenantWanted {
		t.Fatalf("expected Tenant-only filter, got %v", types)
	}
	if cfg.SourceTimeout() != 30*time.Second || cfg.AlertTimeout() != 20*time.Second {
		t.Fatalf("unexpected timeouts %v %v", cfg.SourceTimeout(), cfg.AlertTimeout())
	}
	if cfg.Ledger.Provider != "none" || cfg.LedgerTTL() != 0 {
		t.Fatalf("expected ledger disabled by default: %+v", cfg.Ledger)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	clearWindowEnv(t)

	path := writeConfig(t, `
source:
  headless: true
  nav_timeout_seconds: 10
store:
  provider: gcs
  bucket: rooms
  object: history/woko.csv
alert:
  window_minutes: 15
  listing_types: ["Tenant", "sublet"]
  header: NEW ROOM
  channel: pubsub
pubsub:
  project_id: proj
  topic_id: alerts
ledger:
  provider: redis
  redis_addr: localhost:6379
  ttl_hours: 48
logging:
  level: debug
  development: true
`)

	cfg, err := Load(path, WithDotEnv())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Source.Headless || cfg.Source.NavTimeoutSeconds != 10 {
		t.Fatalf("expected headless overrides: %+v", cfg.Source)
	}
	if cfg.Store.Bucket != "rooms" || cfg.Store.Object != "history/woko.csv" {
		t.Fatalf("expected gcs store: %+v", cfg.Store)
	}
	if cfg.FreshWindow() != 15*time.Minute {
		t.Fatalf("expected 15m window, got %v", cfg.FreshWindow())
	}
	types, _ := cfg.ListingTypes()
	if len(types) != 2 || types[1] != listing.SubletWanted {
		t.Fatalf("unexpected types %v", types)
	}
	if cfg.Alert.Header != "NEW ROOM" || cfg.Alert.Channel != "pubsub" {
		t.Fatalf("unexpected alert config %+v", cfg.Alert)
	}
	if cfg.LedgerTTL() != 48*time.Hour {
		t.Fatalf("expected 48h ttl, got %v", cfg.LedgerTTL())
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Development {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestFreshWindowPrecedence(t *testing.T) {
	path := writeConfig(t, "alert:\n  window_minutes: 15\n")

	tests := []struct {
		name   string
		env    map[string]string
		flag   *int
		want   int
		warned bool
	}{
		{name: "file beats default", want: 15},
		{name: "flag beats file", flag: intPtr(30), want: 30},
		{name: "env beats flag", env: map[string]string{"TIME_WINDOW_MINUTES": "60"}, flag: intPtr(30), want: 60},
		{name: "blank env keeps flag", env: map[string]string{"TIME_WINDOW_MINUTES": ""}, flag: intPtr(30), want: 30},
		{name: "whitespace env keeps file", env: map[string]string{"ROOMWATCH_ALERT_WINDOW_MINUTES": "  "}, want: 15},
		{
			name: "prefixed env wins",
			env:  map[string]string{"ROOMWATCH_ALERT_WINDOW_MINUTES": "90", "TIME_WINDOW_MINUTES": "60"},
			want: 90,
		},
		{
			name:   "non-numeric env falls back to flag",
			env:    map[string]string{"TIME_WINDOW_MINUTES": "soon"},
			flag:   intPtr(30),
			want:   30,
			warned: true,
		},
		{
			name:   "non-numeric prefixed env falls through to legacy name",
			env:    map[string]string{"ROOMWATCH_ALERT_WINDOW_MINUTES": "soon", "TIME_WINDOW_MINUTES": "45"},
			want:   45,
			warned: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearWindowEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := []Option{WithDotEnv()}
			if tt.flag != nil {
				opts = append(opts, WithFreshWindow(*tt.flag))
			}

			cfg, err := Load(path, opts...)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Alert.WindowMinutes != tt.want {
				t.Fatalf("expected window %d, got %d", tt.want, cfg.Alert.WindowMinutes)
			}
			if got := len(cfg.Warnings) > 0; got != tt.warned {
				t.Fatalf("expected warnings=%v, got %v", tt.warned, cfg.Warnings)
			}
		})
	}
}

func TestInvalidWindowInFileIsError(t *testing.T) {
	clearWindowEnv(t)
	path := writeConfig(t, "alert:\n  window_minutes: soon\n")

	if _, err := Load(path, WithDotEnv()); err == nil {
		t.Fatal("expected error for non-numeric window in config file")
	}
}

func intPtr(v int) *int { return &v }

func TestLegacyEnvNames(t *testing.T) {
	clearWindowEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ROOMWATCH_ALERT_LISTING_TYPES", "Tenant,Sublet")

	cfg, err := Load("", WithDotEnv())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.ChatID != "-100" {
		t.Fatalf("expected telegram credentials from env: %+v", cfg.Telegram)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL to apply, got %q", cfg.Logging.Level)
	}
	if len(cfg.Alert.ListingTypes) != 2 {
		t.Fatalf("expected two listing types, got %v", cfg.Alert.ListingTypes)
	}
}

func TestWithStorePath(t *testing.T) {
	clearWindowEnv(t)
	path := writeConfig(t, "store:\n  path: from-file.csv\n")

	cfg, err := Load(path, WithDotEnv(), WithStorePath("/tmp/flag.csv"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Path != "/tmp/flag.csv" {
		t.Fatalf("expected flag path, got %q", cfg.Store.Path)
	}
}

func TestDotEnvFile(t *testing.T) {
	clearWindowEnv(t)
	const key = "ROOMWATCH_PUBSUB_TOPIC_ID"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s already set", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte(key+"=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load("", WithDotEnv(envFile, filepath.Join(t.TempDir(), "missing.env")))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PubSub.TopicID != "from-dotenv" {
		t.Fatalf("expected topic from .env, got %q", cfg.PubSub.TopicID)
	}
}

func TestValidate(t *testing.T) {
	clearWindowEnv(t)
	base, err := Load("", WithDotEnv())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing url", func(c *Config) { c.Source.URL = "" }, "source.url"},
		{"bad timeout", func(c *Config) { c.Source.TimeoutSeconds = 0 }, "source.timeout_seconds"},
		{"bad timezone", func(c *Config) { c.Source.Timezone = "Mars/Olympus" }, "source.timezone"},
		{"unknown store", func(c *Config) { c.Store.Provider = "s3" }, "store.provider"},
		{"gcs without bucket", func(c *Config) { c.Store.Provider = "gcs" }, "store.bucket"},
		{"local without path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"unknown type", func(c *Config) { c.Alert.ListingTypes = []string{"Owner"} }, "alert.listing_types"},
		{"unknown channel", func(c *Config) { c.Alert.Channel = "sms" }, "alert.channel"},
		{"postgres without dsn", func(c *Config) { c.Ledger.Provider = "postgres" }, "ledger.dsn"},
		{"redis without addr", func(c *Config) { c.Ledger.Provider = "redis" }, "ledger.redis_addr"},
		{"unknown ledger", func(c *Config) { c.Ledger.Provider = "etcd" }, "ledger.provider"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Alert.ListingTypes = append([]string(nil), base.Alert.ListingTypes...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLegacyLogLevelNames(t *testing.T) {
	clearWindowEnv(t)

	for _, level := range []string{"WARNING", "CRITICAL"} {
		t.Setenv("LOG_LEVEL", level)
		cfg, err := Load("", WithDotEnv())
		if err != nil {
			t.Fatalf("Load() with LOG_LEVEL=%s error = %v", level, err)
		}
		if cfg.Logging.Level != level {
			t.Fatalf("expected level %q, got %q", level, cfg.Logging.Level)
		}
	}
}
