package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// ErrTooShort is returned by Hash when the password is below the configured minimum.
var ErrTooShort = errors.New("password too short")

// Config holds the Argon2id cost parameters and the minimum accepted password length.
//
// Cost parameters are fixed for the lifetime of an [Argon2]; raising them later
// makes previously stored hashes report [Argon2.NeedsUpgrade].
type Config struct {
	Memory      uint32 `yaml:"memory_kb"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
	MinLength   int    `yaml:"min_length"`
}

// Validate checks cfg against the package minimums.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case c.Time < minTimeCost:
		return fmt.Errorf("password time must be >= %d", minTimeCost)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("password parallelism must be >= %d", minParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	case c.MinLength < 0:
		return errors.New("password min length must be >= 0")
	}
	return nil
}

// Argon2 hashes and verifies passwords in PHC string format.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher bound to it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinLength == 0 {
		cfg.MinLength = 1
	}
	return &Argon2{config: cfg}, nil
}

// MinLength reports the shortest password Hash accepts, in bytes.
func (a *Argon2) MinLength() int {
	return a.config.MinLength
}

// Hash derives a fresh salted Argon2id hash for password. Bytes are hashed
// exactly as given, with no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < a.config.MinLength {
		return "", fmt.Errorf("%w: need at least %d bytes", ErrTooShort, a.config.MinLength)
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	p := phc{
		memory:  a.config.Memory,
		time:    a.config.Time,
		threads: a.config.Parallelism,
		salt:    salt,
	}
	p.hash = argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, a.config.KeyLength)
	return p.String(), nil
}

// Verify recomputes the hash with the parameters stored in encodedHash and
// compares in constant time. A malformed hash is an error, not a mismatch.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(candidate, p.hash) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker parameters
// than the current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return a.config.Memory > p.memory ||
		a.config.Time > p.time ||
		a.config.Parallelism > p.threads ||
		a.config.KeyLength != uint32(len(p.hash)), nil
}
