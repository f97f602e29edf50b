package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateApp(&cfg.App)...)
	errs = append(errs, validateCredentials(&cfg.Credentials)...)
	errs = append(errs, validateWebhooks(&cfg.Webhooks)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.ReadTimeout > 0 && cfg.ReadTimeout < time.Second {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout",
			Message: "warning: values below 1s may cause legitimate requests to timeout",
		})
	}

	if cfg.WriteTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.write_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.WriteTimeout > 0 && cfg.WriteTimeout < time.Second {
		errs = append(errs, ValidationError{
			Field:   "server.write_timeout",
			Message: "warning: values below 1s may cause legitimate requests to timeout",
		})
	}

	if cfg.RegisterRateLimit.Max < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.register_rate_limit.max",
			Message: "must be non-negative",
		})
	}

	if cfg.RegisterRateLimit.Max > 0 && cfg.RegisterRateLimit.Window <= 0 {
		errs = append(errs, ValidationError{
			Field:   "server.register_rate_limit.window",
			Message: "must be positive when max is set",
		})
	}

	if cfg.DeliveryLog < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.delivery_log",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.MaxOpenConns < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.max_open_conns",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxIdleConns < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.max_idle_conns",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[cfg.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: trace, debug, info, warn, error, fatal, panic",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Format] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'console'",
		})
	}

	return errs
}

func validateApp(cfg *AppConfig) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(cfg.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "app.id",
			Message: "is required",
		})
	}

	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "app.name",
			Message: "is required",
		})
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "app.base_url",
			Message: "must be an absolute URL",
		})
	}

	return errs
}

func validateCredentials(cfg *CredentialsConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Backend {
	case "sqlite":
	case "file":
		if strings.TrimSpace(cfg.File.Path) == "" {
			errs = append(errs, ValidationError{
				Field:   "credentials.file.path",
				Message: "required when backend is 'file'",
			})
		}
	case "redis":
		if strings.TrimSpace(cfg.Redis.URL) == "" {
			errs = append(errs, ValidationError{
				Field:   "credentials.redis.url",
				Message: "required when backend is 'redis'",
			})
		}
	case "static":
		if len(cfg.Static) == 0 {
			errs = append(errs, ValidationError{
				Field:   "credentials.static",
				Message: "at least one entry required when backend is 'static'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "credentials.backend",
			Message: "must be one of: sqlite, file, redis, static",
		})
	}

	for i, entry := range cfg.Static {
		if strings.TrimSpace(entry.Domain) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("credentials.static[%d].domain", i),
				Message: "is required",
			})
		}
		if entry.Token == "" && entry.JWKS == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("credentials.static[%d]", i),
				Message: "token or jwks is required",
			})
		}
	}

	return errs
}

func validateWebhooks(cfg *WebhooksConfig) ValidationErrors {
	var errs ValidationErrors

	headers := map[string]string{
		"webhooks.domain_header":    cfg.DomainHeader,
		"webhooks.event_header":     cfg.EventHeader,
		"webhooks.signature_header": cfg.SignatureHeader,
	}
	for field, value := range headers {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "is required",
			})
		}
	}

	for i, pattern := range cfg.AllowedDomains {
		if _, err := glob.Compile(pattern, '.'); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("webhooks.allowed_domains[%d]", i),
				Message: fmt.Sprintf("invalid pattern: %v", err),
			})
		}
	}

	if cfg.JWKSTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "webhooks.jwks_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.JWKSRefreshCooldown < 0 {
		errs = append(errs, ValidationError{
			Field:   "webhooks.jwks_refresh_cooldown",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxBodySize <= 0 {
		errs = append(errs, ValidationError{
			Field:   "webhooks.max_body_size",
			Message: "must be positive",
		})
	}

	return errs
}
