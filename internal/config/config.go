package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CALLSYNC"

var ErrInvalidConfig = errors.New("invalid_config")

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	// HTTPToken, when set, is required as a bearer token on /api routes.
	HTTPToken string

	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Sync     SyncConfig
	Webhook  WebhookConfig
	Quota    QuotaConfig
	Vault    VaultConfig
	Tracing  TracingConfig
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type ProviderConfig struct {
	BaseURL         string
	Timeout         time.Duration
	PageSize        int
	TotalLimit      int
	PageDelay       time.Duration
	RetentionWindow time.Duration
}

type SyncConfig struct {
	EpochFloor    time.Time
	Overlap       time.Duration
	Schedule      string
	Workers       int
	TenantTimeout time.Duration
	LockTTL       time.Duration
}

type WebhookConfig struct {
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64
}

type QuotaConfig struct {
	WarningPercent   float64
	DedupWindow      time.Duration
	MaxNotifications int
}

type VaultConfig struct {
	Provider string
	AESKey   string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// IsDevelopment reports whether the process runs in a local environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "local", "dev", "development":
		return true
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.token", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:callsync.db?_pragma=busy_timeout(5000)")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("provider.base_url", "https://api.vapi.ai")
	v.SetDefault("provider.timeout", 15*time.Second)
	v.SetDefault("provider.page_size", 500)
	v.SetDefault("provider.total_limit", 5000)
	v.SetDefault("provider.page_delay", 500*time.Millisecond)
	v.SetDefault("provider.retention_window", 14*24*time.Hour)

	v.SetDefault("sync.epoch_floor", "2025-01-01")
	v.SetDefault("sync.overlap", time.Hour)
	v.SetDefault("sync.schedule", "@every 30s")
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.tenant_timeout", 2*time.Minute)
	v.SetDefault("sync.lock_ttl", 5*time.Minute)

	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.initial_backoff", 30*time.Second)
	v.SetDefault("webhook.max_backoff", time.Hour)
	v.SetDefault("webhook.jitter", 0.2)

	v.SetDefault("quota.warning_percent", 80)
	v.SetDefault("quota.dedup_window", 24*time.Hour)
	v.SetDefault("quota.max_notifications", 50)

	v.SetDefault("vault.provider", "aes")
	v.SetDefault("vault.aes_key", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "callsync")
}

// NewViper builds the viper instance backing Config. A .env file in the
// working directory is loaded first when present; CALLSYNC_CONFIG names an
// optional config file.
func NewViper() (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	floor, err := time.Parse(time.DateOnly, v.GetString("sync.epoch_floor"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: sync.epoch_floor: %v", ErrInvalidConfig, err)
	}

	cfg := Config{
		AppEnv:    v.GetString("app.env"),
		LogLevel:  v.GetString("log.level"),
		HTTPAddr:  v.GetString("http.addr"),
		HTTPToken: v.GetString("http.token"),
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Provider: ProviderConfig{
			BaseURL:         v.GetString("provider.base_url"),
			Timeout:         v.GetDuration("provider.timeout"),
			PageSize:        v.GetInt("provider.page_size"),
			TotalLimit:      v.GetInt("provider.total_limit"),
			PageDelay:       v.GetDuration("provider.page_delay"),
			RetentionWindow: v.GetDuration("provider.retention_window"),
		},
		Sync: SyncConfig{
			EpochFloor:    floor.UTC(),
			Overlap:       v.GetDuration("sync.overlap"),
			Schedule:      v.GetString("sync.schedule"),
			Workers:       v.GetInt("sync.workers"),
			TenantTimeout: v.GetDuration("sync.tenant_timeout"),
			LockTTL:       v.GetDuration("sync.lock_ttl"),
		},
		Webhook: WebhookConfig{
			Timeout:        v.GetDuration("webhook.timeout"),
			InitialBackoff: v.GetDuration("webhook.initial_backoff"),
			MaxBackoff:     v.GetDuration("webhook.max_backoff"),
			Jitter:         v.GetFloat64("webhook.jitter"),
		},
		Quota: QuotaConfig{
			WarningPercent:   v.GetFloat64("quota.warning_percent"),
			DedupWindow:      v.GetDuration("quota.dedup_window"),
			MaxNotifications: v.GetInt("quota.max_notifications"),
		},
		Vault: VaultConfig{
			Provider: v.GetString("vault.provider"),
			AESKey:   v.GetString("vault.aes_key"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			Endpoint:    v.GetString("tracing.endpoint"),
			ServiceName: v.GetString("tracing.service_name"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Provider.PageSize <= 0:
		return fmt.Errorf("%w: provider.page_size must be positive", ErrInvalidConfig)
	case c.Provider.TotalLimit <= 0:
		return fmt.Errorf("%w: provider.total_limit must be positive", ErrInvalidConfig)
	case c.Sync.Workers <= 0:
		return fmt.Errorf("%w: sync.workers must be positive", ErrInvalidConfig)
	case c.Webhook.Jitter < 0 || c.Webhook.Jitter > 1:
		return fmt.Errorf("%w: webhook.jitter must be within [0, 1]", ErrInvalidConfig)
	case c.Quota.MaxNotifications <= 0:
		return fmt.Errorf("%w: quota.max_notifications must be positive", ErrInvalidConfig)
	}
	return nil
}
