package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnavailable wraps every Redis transport or server error.
	ErrUnavailable = errors.New("session cache unavailable")
	// ErrNotFound is returned by Get when the slot is empty or expired.
	ErrNotFound = errors.New("session not found")
	// ErrTokenMismatch is returned by Get when the slot belongs to a different token.
	ErrTokenMismatch = errors.New("session token mismatch")
	// ErrCorrupt is returned when a slot cannot be decoded.
	ErrCorrupt = errors.New("session slot corrupt")
)

// Scope selects how slots are keyed.
type Scope string

const (
	// ScopeDevice keeps one slot per (user, device): every device stays fast-path valid.
	ScopeDevice Scope = "device"
	// ScopeUser keeps one slot per user: only the most recent login is fast-path valid.
	ScopeUser Scope = "user"
)

const (
	fieldPayload   = "p"
	fieldTokenHash = "t"
	fieldDevice    = "d"
)

// putScript refuses any version at or below the device's watermark, whichever
// device currently holds the slot. The watermark outlives slot eviction so a
// stale login cannot republish after logout either.
const putScript = `
local mark = tonumber(redis.call("HGET", KEYS[3], ARGV[2]) or "0")
if mark >= tonumber(ARGV[3]) then
  return 0
end
if redis.call("HGET", KEYS[1], "d") == ARGV[2] then
  local cur_ver = tonumber(redis.call("HGET", KEYS[1], "v") or "0")
  if cur_ver >= tonumber(ARGV[3]) then
    return 0
  end
end
redis.call("HSET", KEYS[3], ARGV[2], ARGV[3])
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "p", ARGV[1], "d", ARGV[2], "v", ARGV[3], "t", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
redis.call("SADD", KEYS[2], KEYS[1])
for _, k in ipairs({KEYS[2], KEYS[3]}) do
  if redis.call("PTTL", k) < tonumber(ARGV[5]) then
    redis.call("PEXPIRE", k, ARGV[5])
  end
end
return 1
`

var putLua = redis.NewScript(putScript)

const evictIfTokenScript = `
local cur = redis.call("HGET", KEYS[1], "t")
if cur and cur == ARGV[1] then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", KEYS[2], KEYS[1])
  return 1
end
return 0
`

var evictIfTokenLua = redis.NewScript(evictIfTokenScript)

const evictAllScript = `
local keys = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, k in ipairs(keys) do
  removed = removed + redis.call("DEL", k)
end
redis.call("DEL", KEYS[1])
return removed
`

var evictAllLua = redis.NewScript(evictAllScript)

// Store is the Redis session cache.
//
// All methods are safe for concurrent use; atomicity per slot comes from the
// Lua scripts, not from client-side locking.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	scope  Scope
}

// NewStore creates a [Store] using prefix as the key namespace. An empty
// scope means [ScopeDevice].
func NewStore(rdb redis.UniversalClient, prefix string, scope Scope) *Store {
	if scope == "" {
		scope = ScopeDevice
	}
	if prefix == "" {
		prefix = "da"
	}
	return &Store{redis: rdb, prefix: prefix, scope: scope}
}

// Scope returns the configured slot scope.
func (s *Store) Scope() Scope {
	return s.scope
}

// Key returns the slot key used for (userID, deviceID).
func (s *Store) Key(userID, deviceID string) string {
	if s.scope == ScopeUser {
		return s.prefix + ":s:" + userID
	}
	return s.prefix + ":s:" + userID + ":" + deviceID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// versionKey holds the highest published token version per device of userID.
func (s *Store) versionKey(userID string) string {
	return s.prefix + ":v:" + userID
}

// Put writes e into its slot with the given TTL.
//
// It reports false, without error, when a session for the same device at an
// equal or newer version was already published, even if another device has
// since taken the slot under [ScopeUser].
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Put(ctx context.Context, e Entry, ttl time.Duration) (bool, error) {
	if e.Session == nil {
		return false, errors.New("nil session")
	}
	if ttl <= 0 {
		return false, errors.New("non-positive session ttl")
	}
	data, err := Encode(e.Session)
	if err != nil {
		return false, err
	}

	stored, err := putLua.Run(
		ctx,
		s.redis,
		[]string{
			s.Key(e.Session.UserID, e.Session.DeviceID),
			s.userKey(e.Session.UserID),
			s.versionKey(e.Session.UserID),
		},
		data,
		e.Session.DeviceID,
		strconv.FormatInt(e.Version, 10),
		e.TokenHash[:],
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stored == 1, nil
}

// Get loads the slot for (userID, deviceID) and checks that it belongs to
// presentedToken.
//
//	Performance: 1 Redis HMGET.
//	Security: token hashes are compared in constant time.
func (s *Store) Get(ctx context.Context, userID, deviceID, presentedToken string) (*Session, error) {
	vals, err := s.redis.HMGet(ctx, s.Key(userID, deviceID), fieldTokenHash, fieldPayload, fieldDevice).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vals) != 3 || vals[0] == nil || vals[1] == nil {
		return nil, ErrNotFound
	}

	storedHash, _ := vals[0].(string)
	payload, _ := vals[1].(string)
	storedDevice, _ := vals[2].(string)

	presented := HashToken(presentedToken)
	if subtle.ConstantTimeCompare([]byte(storedHash), presented[:]) != 1 {
		return nil, ErrTokenMismatch
	}
	if storedDevice != deviceID {
		return nil, ErrTokenMismatch
	}

	sess, err := Decode([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if sess.ExpiresAt > 0 && time.Now().Unix() >= sess.ExpiresAt {
		return nil, ErrNotFound
	}
	return sess, nil
}

// EvictIfToken removes the slot for (userID, deviceID) only while it still
// holds the token with the given hash. A newer login in the same slot survives.
//
//	Security: compare-and-delete, so a stale token can never evict a live session.
func (s *Store) EvictIfToken(ctx context.Context, userID, deviceID string, tokenHash [32]byte) (bool, error) {
	n, err := evictIfTokenLua.Run(ctx, s.redis, []string{s.Key(userID, deviceID), s.userKey(userID)}, tokenHash[:]).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// EvictAll removes every slot indexed for userID and the index itself.
// It returns how many slots existed. Calling it again returns 0.
func (s *Store) EvictAll(ctx context.Context, userID string) (int, error) {
	n, err := evictAllLua.Run(ctx, s.redis, []string{s.userKey(userID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
