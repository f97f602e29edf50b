package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrMissingRequired = errors.New("missing required configuration")
)

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "SALEORHOOK"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("saleorhook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/saleorhook")
		v.AddConfigPath("/etc/saleorhook")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.metrics", cfg.Server.Metrics)
	v.SetDefault("server.delivery_log", cfg.Server.DeliveryLog)
	v.SetDefault("server.register_rate_limit.max", cfg.Server.RegisterRateLimit.Max)
	v.SetDefault("server.register_rate_limit.window", cfg.Server.RegisterRateLimit.Window)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.wal_mode", cfg.Database.WALMode)
	v.SetDefault("database.busy_timeout", cfg.Database.BusyTimeout)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.caller", cfg.Logging.Caller)

	v.SetDefault("app.id", cfg.App.ID)
	v.SetDefault("app.name", cfg.App.Name)
	v.SetDefault("app.version", cfg.App.Version)
	v.SetDefault("app.base_url", cfg.App.BaseURL)
	v.SetDefault("app.permissions", cfg.App.Permissions)
	v.SetDefault("app.author", cfg.App.Author)
	v.SetDefault("app.about", cfg.App.About)

	v.SetDefault("credentials.backend", cfg.Credentials.Backend)
	v.SetDefault("credentials.file.path", cfg.Credentials.File.Path)
	v.SetDefault("credentials.file.watch", cfg.Credentials.File.Watch)
	v.SetDefault("credentials.redis.url", cfg.Credentials.Redis.URL)
	v.SetDefault("credentials.redis.key_prefix", cfg.Credentials.Redis.KeyPrefix)
	// Static entries are a list and have no per-key default

	v.SetDefault("webhooks.domain_header", cfg.Webhooks.DomainHeader)
	v.SetDefault("webhooks.event_header", cfg.Webhooks.EventHeader)
	v.SetDefault("webhooks.signature_header", cfg.Webhooks.SignatureHeader)
	v.SetDefault("webhooks.allowed_domains", cfg.Webhooks.AllowedDomains)
	v.SetDefault("webhooks.refresh_jwks", cfg.Webhooks.RefreshJWKS)
	v.SetDefault("webhooks.jwks_timeout", cfg.Webhooks.JWKSTimeout)
	v.SetDefault("webhooks.jwks_refresh_cooldown", cfg.Webhooks.JWKSRefreshCooldown)
	v.SetDefault("webhooks.verify_app_token", cfg.Webhooks.VerifyAppToken)
	v.SetDefault("webhooks.max_body_size", cfg.Webhooks.MaxBodySize)
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}

func ConfigFilePath(customPath string) (string, error) {
	if customPath != "" {
		absPath, err := filepath.Abs(customPath)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", absPath)
		}
		return absPath, nil
	}

	searchPaths := []string{
		"saleorhook.yaml",
		"saleorhook.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "saleorhook", "saleorhook.yaml"),
		"/etc/saleorhook/saleorhook.yaml",
	}

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", ErrConfigNotFound
}
