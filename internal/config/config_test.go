package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}

	if cfg.Database.Path != DefaultDBPath {
		t.Errorf("expected db path %s, got %s", DefaultDBPath, cfg.Database.Path)
	}

	if cfg.Webhooks.SignatureHeader != DefaultSignatureHeader {
		t.Errorf("expected signature header %s, got %s", DefaultSignatureHeader, cfg.Webhooks.SignatureHeader)
	}

	if cfg.Credentials.Backend != "sqlite" {
		t.Errorf("expected sqlite credentials backend, got %s", cfg.Credentials.Backend)
	}

	if !cfg.Webhooks.VerifyAppToken {
		t.Error("expected app token verification to be on by default")
	}

	if cfg.Webhooks.JWKSRefreshCooldown != DefaultJWKSCooldown {
		t.Errorf("expected jwks refresh cooldown %s, got %s", DefaultJWKSCooldown, cfg.Webhooks.JWKSRefreshCooldown)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0

	err := Validate(cfg)
	if err == nil {
		t.Error("expected validation error for invalid port")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	found := false
	for _, e := range errs {
		if e.Field == "server.port" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected error for server.port field")
	}
}

func TestValidate_ServerLimits(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"negative delivery log", func(c *Config) { c.Server.DeliveryLog = -1 }, "server.delivery_log"},
		{"negative rate limit", func(c *Config) { c.Server.RegisterRateLimit.Max = -1 }, "server.register_rate_limit.max"},
		{"rate limit without window", func(c *Config) { c.Server.RegisterRateLimit.Window = 0 }, "server.register_rate_limit.window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs, ok := Validate(cfg).(ValidationErrors)
			if !ok {
				t.Fatalf("expected ValidationErrors")
			}
			if len(errs) != 1 || errs[0].Field != tt.field {
				t.Errorf("expected single error for %s, got %v", tt.field, errs)
			}
		})
	}

	cfg := Default()
	cfg.Server.RegisterRateLimit = RateLimitRule{}
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled rate limit should be valid, got %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "invalid"

	err := Validate(cfg)
	if err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidate_Credentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"unknown backend", func(c *Config) { c.Credentials.Backend = "etcd" }, true},
		{"redis without url", func(c *Config) { c.Credentials.Backend = "redis" }, true},
		{"redis with url", func(c *Config) {
			c.Credentials.Backend = "redis"
			c.Credentials.Redis.URL = "redis://localhost:6379/0"
		}, false},
		{"static without entries", func(c *Config) { c.Credentials.Backend = "static" }, true},
		{"static entry without secret", func(c *Config) {
			c.Credentials.Backend = "static"
			c.Credentials.Static = []StaticCredential{{Domain: "shop.example.com"}}
		}, true},
		{"static entry with token", func(c *Config) {
			c.Credentials.Backend = "static"
			c.Credentials.Static = []StaticCredential{{Domain: "shop.example.com", Token: "secret"}}
		}, false},
		{"file without path", func(c *Config) {
			c.Credentials.Backend = "file"
			c.Credentials.File.Path = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Webhooks(t *testing.T) {
	cfg := Default()
	cfg.Webhooks.AllowedDomains = []string{"*.saleor.cloud", "[invalid"}
	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for malformed domain pattern")
	}

	cfg = Default()
	cfg.Webhooks.EventHeader = " "
	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for blank event header")
	}

	cfg = Default()
	cfg.Webhooks.MaxBodySize = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for zero max body size")
	}

	cfg = Default()
	cfg.Webhooks.JWKSRefreshCooldown = -time.Second
	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for negative jwks refresh cooldown")
	}
}

func TestValidate_AppBaseURL(t *testing.T) {
	cfg := Default()
	cfg.App.BaseURL = "not a url"

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for relative base url")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saleorhook.yaml")

	content := `
server:
  port: 9000
  host: "0.0.0.0"
database:
  path: "test.db"
logging:
  level: "debug"
app:
  base_url: "https://hooks.example.com/"
webhooks:
  allowed_domains:
    - "*.saleor.cloud"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected db path test.db, got %s", cfg.Database.Path)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	if got := cfg.App.PublicURL(); got != "https://hooks.example.com" {
		t.Errorf("expected trimmed public url, got %s", got)
	}

	if len(cfg.Webhooks.AllowedDomains) != 1 || cfg.Webhooks.AllowedDomains[0] != "*.saleor.cloud" {
		t.Errorf("unexpected allowed domains: %v", cfg.Webhooks.AllowedDomains)
	}

	if cfg.Webhooks.DomainHeader != DefaultDomainHeader {
		t.Errorf("expected default domain header, got %s", cfg.Webhooks.DomainHeader)
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SALEORHOOK_SERVER_PORT", "7777")
	t.Setenv("SALEORHOOK_DATABASE_PATH", "env-test.db")

	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777 from env, got %d", cfg.Server.Port)
	}

	if cfg.Database.Path != "env-test.db" {
		t.Errorf("expected db path env-test.db from env, got %s", cfg.Database.Path)
	}
}

func TestLoad_ExpandsEnvPlaceholders(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saleorhook.yaml")
	t.Setenv("TEST_REDIS_URL", "redis://cache:6379/1")

	content := `
credentials:
  backend: redis
  redis:
    url: "${TEST_REDIS_URL}"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Credentials.Redis.URL != "redis://cache:6379/1" {
		t.Errorf("expected expanded redis url, got %s", cfg.Credentials.Redis.URL)
	}
}

func TestServerAddress(t *testing.T) {
	cfg := &ServerConfig{Host: "localhost", Port: 3000}
	if addr := cfg.Address(); addr != "localhost:3000" {
		t.Errorf("expected localhost:3000, got %s", addr)
	}
}
