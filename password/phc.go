package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID  = "argon2id"
	argon2Prefix = "$" + algorithmID + "$"
)

var (
	errMalformedPHC  = errors.New("invalid PHC hash format")
	errBadPHCParams  = errors.New("invalid argon2 parameters")
	errPHCVersion    = errors.New("unsupported argon2 version")
	errPHCAlgorithm  = errors.New("unsupported hash algorithm")
	errPHCSaltLength = errors.New("argon2 salt too short")
)

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$hash string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.hash),
	)
}

// decodePHC parses encoded and rejects parameters below the package minimums,
// so a tampered row cannot force a near-free verification.
func decodePHC(encoded string) (phc, error) {
	var p phc

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, errMalformedPHC
	}
	if parts[1] != algorithmID {
		return p, fmt.Errorf("%w: %s", errPHCAlgorithm, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("parsing version: %w", errMalformedPHC)
	}
	if version != argon2.Version {
		return p, errPHCVersion
	}

	var threads uint32
	n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, threads) != parts[3] {
		return p, errBadPHCParams
	}
	if p.memory < minMemoryKB || p.time < minTimeCost || threads < uint32(minParallelism) || threads > 255 {
		return p, errBadPHCParams
	}
	p.threads = uint8(threads)

	// rows written before the switch to raw encoding carry '=' padding
	if p.salt, err = decodeB64(parts[4]); err != nil {
		return p, fmt.Errorf("decoding salt: %w", err)
	}
	if len(p.salt) < int(minSaltLength) {
		return p, errPHCSaltLength
	}
	if p.hash, err = decodeB64(parts[5]); err != nil {
		return p, fmt.Errorf("decoding hash: %w", err)
	}
	if len(p.hash) == 0 {
		return p, errMalformedPHC
	}

	return p, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
