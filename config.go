package devAuth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/devAuth/internal/audit"
	"github.com/MrEthical07/devAuth/internal/logging"
	"github.com/MrEthical07/devAuth/session"
	"github.com/MrEthical07/devAuth/store"
	"gopkg.in/yaml.v3"
)

// Config is the complete engine and daemon configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Password PasswordConfig `yaml:"password"`
	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Account  AccountConfig  `yaml:"account"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures device token signing.
type JWTConfig struct {
	TokenTTL      time.Duration `yaml:"token_ttl"`
	SigningMethod string        `yaml:"signing_method"` // "hs256" (default) or "ed25519"
	// Secret is the HS256 key, at least 32 bytes.
	Secret string `yaml:"secret"`
	// PrivateKeyFile and PublicKeyFile hold PEM Ed25519 keys; LoadConfig reads
	// them into PrivateKey and PublicKey.
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	PrivateKey     []byte        `yaml:"-"`
	PublicKey      []byte        `yaml:"-"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	Leeway         time.Duration `yaml:"leeway"`
	KeyID          string        `yaml:"key_id"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures Argon2id cost and the minimum password length.
type PasswordConfig struct {
	Memory         uint32 `yaml:"memory_kb"`
	Time           uint32 `yaml:"time"`
	Parallelism    uint8  `yaml:"parallelism"`
	SaltLength     uint32 `yaml:"salt_length"`
	KeyLength      uint32 `yaml:"key_length"`
	MinLength      int    `yaml:"min_length"`
	UpgradeOnLogin bool   `yaml:"upgrade_on_login"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis session cache.
type SessionConfig struct {
	RedisPrefix string `yaml:"redis_prefix"`
	// Scope is "device" (one slot per user and device) or "user" (one slot per user).
	Scope            string        `yaml:"scope"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

/*
====================================
DATABASE CONFIG
====================================
*/

// DatabaseConfig configures the credential store and device registry.
type DatabaseConfig struct {
	store.Config     `yaml:",inline"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// RedisConfig configures the client the daemon builds for the session cache.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AccountConfig configures registration and role resolution.
type AccountConfig struct {
	// DefaultRole is assigned to every registered user and must exist in Roles.
	DefaultRole string `yaml:"default_role"`
	// Roles maps role names to permission names. Builder.WithRoles replaces it.
	Roles map[string][]string `yaml:"roles"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig = internalaudit.Config

// LoggingConfig controls the daemon logger.
type LoggingConfig = logging.Config

// ServerConfig configures the daemon listeners.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when nothing is overridden.
// It has no signing secret and no database DSN; both must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TokenTTL:      365 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      1,
			UpgradeOnLogin: true,
		},
		Session: SessionConfig{
			RedisPrefix:      "da",
			Scope:            string(session.ScopeDevice),
			OperationTimeout: 500 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Config: store.Config{
				Driver:          "postgres",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
				BusyTimeout:     5 * time.Second,
				AutoMigrate:     true,
			},
			OperationTimeout: 3 * time.Second,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Account: AccountConfig{
			DefaultRole: "user",
			Roles: map[string][]string{
				"user":  {"session.read", "device.manage"},
				"admin": {"session.read", "device.manage", "user.manage"},
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.Account.Roles != nil {
		out.Account.Roles = make(map[string][]string, len(cfg.Account.Roles))
		for role, perms := range cfg.Account.Roles {
			out.Account.Roles[role] = append([]string(nil), perms...)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
LOADING
====================================
*/

// LoadConfig reads a YAML file over the defaults, applies the DEVAUTH_*
// environment overrides, loads key files and validates the result. An empty
// path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := loadKeyFiles(&cfg.JWT); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVAUTH_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("DEVAUTH_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DEVAUTH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

func loadKeyFiles(cfg *JWTConfig) error {
	if cfg.PrivateKeyFile != "" {
		b, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("reading jwt private key: %w", err)
		}
		cfg.PrivateKey = b
	}
	if cfg.PublicKeyFile != "" {
		b, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("reading jwt public key: %w", err)
		}
		cfg.PublicKey = b
	}
	return nil
}

// signingKey returns the key material handed to the token manager.
func (c *JWTConfig) signingKey() []byte {
	if strings.EqualFold(c.SigningMethod, "ed25519") || len(c.PrivateKey) > 0 {
		return cloneBytes(c.PrivateKey)
	}
	return []byte(c.Secret)
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TokenTTL <= 0 {
		return errors.New("JWT TokenTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.signingKey()) < 32 {
			return errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey or PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}

	// Session
	switch session.Scope(c.Session.Scope) {
	case session.ScopeDevice, session.ScopeUser:
	default:
		return errors.New("Session Scope must be 'device' or 'user'")
	}
	if c.Session.OperationTimeout <= 0 {
		return errors.New("Session OperationTimeout must be > 0")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " :") {
		return errors.New("Session RedisPrefix must not contain spaces or colons")
	}

	// Database
	if c.Database.OperationTimeout <= 0 {
		return errors.New("Database OperationTimeout must be > 0")
	}
	if c.Database.Driver != "" {
		if _, err := store.DialectFor(c.Database.Driver); err != nil {
			return err
		}
	}

	// Account
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must be set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
