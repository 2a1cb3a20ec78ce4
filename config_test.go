package devAuth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = testSecret
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "missing secret",
			mutate: func(c *Config) {
				c.JWT.Secret = ""
			},
			wantValid: false,
		},
		{
			name: "short secret",
			mutate: func(c *Config) {
				c.JWT.Secret = "too-short"
			},
			wantValid: false,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt audience blank invalid",
			mutate: func(c *Config) {
				c.JWT.Audience = "   "
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "ed25519 without keys",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "session scope user",
			mutate: func(c *Config) {
				c.Session.Scope = "user"
			},
			wantValid: true,
		},
		{
			name: "session scope invalid",
			mutate: func(c *Config) {
				c.Session.Scope = "tenant"
			},
			wantValid: false,
		},
		{
			name: "session prefix with colon",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "a:b"
			},
			wantValid: false,
		},
		{
			name: "session timeout zero",
			mutate: func(c *Config) {
				c.Session.OperationTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "database timeout zero",
			mutate: func(c *Config) {
				c.Database.OperationTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "database driver unknown",
			mutate: func(c *Config) {
				c.Database.Driver = "oracle"
			},
			wantValid: false,
		},
		{
			name: "password memory too low",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "default role empty",
			mutate: func(c *Config) {
				c.Account.DefaultRole = ""
			},
			wantValid: false,
		},
		{
			name: "latency without metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devauth.yaml")
	yamlDoc := strings.Join([]string{
		"jwt:",
		"  secret: " + testSecret,
		"  token_ttl: 720h",
		"session:",
		"  scope: user",
		"  operation_timeout: 250ms",
		"database:",
		"  driver: sqlite3",
		"  dsn: /tmp/ignored.db",
		"account:",
		"  default_role: member",
		"  roles:",
		"    member: [session.read]",
		"logging:",
		"  level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DEVAUTH_DATABASE_DSN", "/tmp/from-env.db")
	t.Setenv("DEVAUTH_REDIS_ADDR", "redis.internal:6380")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JWT.TokenTTL != 720*time.Hour {
		t.Fatalf("token ttl = %v", cfg.JWT.TokenTTL)
	}
	if cfg.Session.Scope != "user" || cfg.Session.OperationTimeout != 250*time.Millisecond {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Database.DSN != "/tmp/from-env.db" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Account.DefaultRole != "member" || len(cfg.Account.Roles["member"]) != 1 {
		t.Fatalf("account = %+v", cfg.Account)
	}
	// untouched sections keep defaults
	if cfg.Password.Memory != 65536 || cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("defaults lost: password=%+v server=%+v", cfg.Password, cfg.Server)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigSecretFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devauth.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected missing secret to fail validation")
	}

	t.Setenv("DEVAUTH_JWT_SECRET", testSecret)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JWT.Secret != testSecret {
		t.Fatal("expected secret from environment")
	}
}

func TestCloneConfigDeepCopiesRoles(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)
	clone.Account.Roles["user"][0] = "mutated"

	if cfg.Account.Roles["user"][0] == "mutated" {
		t.Fatal("cloneConfig shares role slices")
	}
}
