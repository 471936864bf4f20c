package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ohsync/internal/bootstrap/logging"
	"ohsync/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// BaseURL is this service's public origin; OAuth redirect URIs and
	// webhook callback URLs are built from it.
	BaseURL string `mapstructure:"base_url"`
	// PortalURL is where OAuth callbacks redirect the browser back to.
	PortalURL string `mapstructure:"portal_url"`
}

type VaultConfig struct {
	// Key is the hex-encoded 32-byte AEAD key for credential blobs.
	Key string `mapstructure:"key"`
	// LookupKey keys the HMAC that derives the non-secret subscription
	// lookup column. Separate from Key so neither derives the other.
	LookupKey string `mapstructure:"lookup_key"`
}

type OAuthClientConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type ProvidersConfig struct {
	Google    OAuthClientConfig `mapstructure:"google"`
	Microsoft OAuthClientConfig `mapstructure:"microsoft"`
	Dynamics  OAuthClientConfig `mapstructure:"dynamics"`
	// DynamicsResource is the tenant's Dynamics 365 instance URL.
	DynamicsResource string `mapstructure:"dynamics_resource"`
}

type SyncConfig struct {
	FetchTimeout        time.Duration `mapstructure:"fetch_timeout"`
	NotificationTimeout time.Duration `mapstructure:"notification_timeout"`
	StateTTL            time.Duration `mapstructure:"state_ttl"`
	ScheduledInterval   time.Duration `mapstructure:"scheduled_interval"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Vault.Key == "" {
		return Config{}, errors.New("vault.key is required")
	}
	if cfg.Vault.LookupKey == "" {
		return Config{}, errors.New("vault.lookup_key is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("http_addr", cfg.HTTP.Addr),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ohsync")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".ohsync/state/ohsync.sqlite")
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.base_url", "http://localhost:8090")
	v.SetDefault("http.portal_url", "http://localhost:3000")
	v.SetDefault("sync.fetch_timeout", 30*time.Second)
	v.SetDefault("sync.notification_timeout", 45*time.Second)
	v.SetDefault("sync.state_ttl", 15*time.Minute)
	v.SetDefault("sync.scheduled_interval", 15*time.Minute)
}
