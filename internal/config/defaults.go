package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost         = "localhost"
	DefaultPort         = 3000
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second

	DefaultRegisterRateLimit  = 10
	DefaultRegisterRateWindow = time.Minute

	// Database defaults.
	DefaultDBPath       = "saleorhook.db"
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	// App defaults.
	DefaultAppID      = "saleor.app.saleorhook"
	DefaultAppName    = "saleorhook"
	DefaultAppVersion = "0.1.0"
	DefaultBaseURL    = "http://localhost:3000"

	// Credential store defaults.
	DefaultCredentialsBackend = "sqlite"
	DefaultCredentialsFile    = ".saleor-app-auth.json"
	DefaultRedisKeyPrefix     = "saleorhook:auth:"

	// Webhook defaults.
	DefaultDomainHeader    = "Saleor-Domain"
	DefaultEventHeader     = "Saleor-Event"
	DefaultSignatureHeader = "Saleor-Signature"
	DefaultJWKSTimeout     = 5 * time.Second
	DefaultJWKSCooldown    = time.Minute
	DefaultMaxBodySize     = 1024 * 1024 // 1MB
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			Metrics:      true,
			RegisterRateLimit: RateLimitRule{
				Max:    DefaultRegisterRateLimit,
				Window: DefaultRegisterRateWindow,
			},
		},
		Database: DatabaseConfig{
			Path:         DefaultDBPath,
			WALMode:      true,
			BusyTimeout:  DefaultBusyTimeout,
			MaxOpenConns: DefaultMaxOpenConns,
			MaxIdleConns: DefaultMaxIdleConns,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		App: AppConfig{
			ID:          DefaultAppID,
			Name:        DefaultAppName,
			Version:     DefaultAppVersion,
			BaseURL:     DefaultBaseURL,
			Permissions: []string{"MANAGE_PRODUCTS"},
		},
		Credentials: CredentialsConfig{
			Backend: DefaultCredentialsBackend,
			File: FileCredentialsConfig{
				Path:  DefaultCredentialsFile,
				Watch: true,
			},
			Redis: RedisCredentialsConfig{
				KeyPrefix: DefaultRedisKeyPrefix,
			},
		},
		Webhooks: WebhooksConfig{
			DomainHeader:    DefaultDomainHeader,
			EventHeader:     DefaultEventHeader,
			SignatureHeader: DefaultSignatureHeader,
			RefreshJWKS:     true,
			JWKSTimeout:     DefaultJWKSTimeout,
			MaxBodySize:     DefaultMaxBodySize,

			JWKSRefreshCooldown: DefaultJWKSCooldown,
			VerifyAppToken:      true,
		},
	}
}
