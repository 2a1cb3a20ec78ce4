package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used for device tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared process-wide secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key and verifies with the public half.
	MethodEd25519 SigningMethod = "ed25519"
)

// DefaultTokenTTL is roughly one year; device tokens are long-lived and
// revoked through the registry rather than by expiry.
const DefaultTokenTTL = 365 * 24 * time.Hour

const minHMACSecretBytes = 32

var (
	// ErrMissingSubject is returned by Parse when sub is empty.
	ErrMissingSubject = errors.New("token missing subject")
	// ErrMissingDevice is returned by Parse when device_id is empty.
	ErrMissingDevice = errors.New("token missing device id")
)

// Config defines a public type used by devAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	TokenTTL      time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
}

// Manager issues and verifies device tokens.
//
// Keys are parsed once by NewManager; the Manager is immutable afterwards and
// safe for concurrent use.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	parser    *jwt.Parser
}

// Claims is the claim set carried by a device token.
//
// Subject is the user id. ID (jti) is random per issuance so two logins in
// the same second still produce distinct tokens.
type Claims struct {
	Username string `json:"username"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager bound to it.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.TokenTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACSecretBytes {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACSecretBytes)
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			if len(cfg.PublicKey) == 0 {
				m.verifyKey = priv.Public().(ed25519.PublicKey)
			}
		}
		if m.verifyKey == nil {
			if len(cfg.PublicKey) == 0 {
				return nil, errors.New("ed25519 requires a public key")
			}
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// TTL returns the configured token lifetime.
func (j *Manager) TTL() time.Duration {
	return j.config.TokenTTL
}

// Issue mints a signed token for (userID, username, deviceID).
//
// Issue is pure: it performs no I/O, so a caller that fails to persist the
// device row can simply drop the result.
func (j *Manager) Issue(userID, username, deviceID string) (string, *Claims, error) {
	if userID == "" {
		return "", nil, ErrMissingSubject
	}
	if deviceID == "" {
		return "", nil, ErrMissingDevice
	}

	now := time.Now()
	claims := &Claims{
		Username: username,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.TokenTTL)),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	if j.signKey == nil {
		return "", nil, errors.New("manager is verify-only")
	}
	token := jwt.NewWithClaims(j.method, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Parse verifies algorithm, signature, expiry and the configured issuer and
// audience, then requires a subject and a device id.
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	token, err := j.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != j.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return j.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(time.Now().Add(j.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.DeviceID == "" {
		return nil, ErrMissingDevice
	}

	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
