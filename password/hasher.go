package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnknownFormat is returned when a stored hash is neither Argon2id PHC nor bcrypt.
var ErrUnknownFormat = errors.New("unknown password hash format")

// Hasher is the hashing surface the credential flows depend on.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
	MinLength() int
}

// Migrating wraps an [Argon2] hasher and additionally accepts bcrypt hashes
// imported from an earlier system. New hashes are always Argon2id, and every
// bcrypt hash reports NeedsUpgrade so it is rewritten on the next login.
type Migrating struct {
	*Argon2
}

// NewMigrating builds a Migrating hasher from cfg.
func NewMigrating(cfg Config) (*Migrating, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Migrating{Argon2: a}, nil
}

// Verify dispatches on the hash prefix.
func (m *Migrating) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return m.Argon2.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnknownFormat
	}
}

// NeedsUpgrade is true for any bcrypt hash and otherwise defers to Argon2.
func (m *Migrating) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	return m.Argon2.NeedsUpgrade(encodedHash)
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}
