package devAuth

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	internalaudit "github.com/MrEthical07/devAuth/internal/audit"
	"github.com/MrEthical07/devAuth/internal/flows"
	"github.com/MrEthical07/devAuth/internal/logging"
	"github.com/MrEthical07/devAuth/jwt"
	"github.com/MrEthical07/devAuth/password"
	"github.com/MrEthical07/devAuth/permission"
	"github.com/MrEthical07/devAuth/session"
	"github.com/MrEthical07/devAuth/store"
)

// Builder assembles an [Engine] from configuration and its two backing stores.
//
// A Builder is single-use: Build may succeed at most once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *store.DB
	logger *slog.Logger

	roles     map[string][]string
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the session cache client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the database holding users and devices. Required.
func (b *Builder) WithStore(db *store.DB) *Builder {
	b.db = db
	return b
}

// WithLogger sets the logger for operational warnings. Nil discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRoles replaces Account.Roles.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.roles != nil {
		cfg.Account.Roles = b.roles
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.db == nil {
		return nil, errors.New("store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Account.Roles) == 0 {
		return nil, errors.New("roles must be provided")
	}

	// -------- ROLES --------
	catalog, err := permission.NewCatalog(cfg.Account.Roles)
	if err != nil {
		return nil, err
	}
	if !catalog.HasRole(cfg.Account.DefaultRole) {
		return nil, errors.New("account default role is not defined in roles")
	}

	// -------- HASHING & TOKENS --------
	hasher, err := password.NewMigrating(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(flows.DummyPassword)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		TokenTTL:      cfg.JWT.TokenTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cfg.JWT.signingKey(),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	engine := &Engine{
		config:     cfg,
		roles:      catalog,
		db:         b.db,
		users:      store.NewUsers(b.db),
		devices:    store.NewDevices(b.db),
		sessions:   session.NewStore(b.redis, cfg.Session.RedisPrefix, session.Scope(cfg.Session.Scope)),
		audit:      internalaudit.NewDispatcher(cfg.Audit, b.auditSink, logger),
		metrics:    NewMetrics(cfg.Metrics),
		hasher:     hasher,
		jwtManager: jm,
		logger:     logger,
		dummyHash:  dummyHash,
		newUserID:  uuid.NewString,
	}
	engine.initFlows()

	b.built = true

	return engine, nil
}

