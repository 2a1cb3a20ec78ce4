package devAuth

import (
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/devAuth/internal/audit"
	"github.com/MrEthical07/devAuth/session"
)

// User is the public view of an account. It never carries the password hash.
type User struct {
	ID                 string
	Username           string
	Email              string
	Role               string
	IsBlocked          bool
	MustChangePassword bool
	EmailVerified      bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Device is one registered (user, device) pair as returned by ListDevices.
//
// The token bound to the device is deliberately absent.
type Device struct {
	ID          string
	UserID      string
	DeviceID    string
	Name        string
	Type        string
	OS          string
	Browser     string
	IPAddress   string
	IsActive    bool
	IsTrusted   bool
	LastLoginAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeviceInfo is the client-reported metadata sent with a login. Empty fields
// keep whatever was stored for the device before.
type DeviceInfo struct {
	DeviceID  string
	Name      string
	Type      string
	OS        string
	Browser   string
	IPAddress string
}

// Session is the authorized view returned by ValidateToken.
type Session = session.Session

// RegisterRequest carries the inputs of Register.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// LoginRequest carries the inputs of Login.
type LoginRequest struct {
	Username string
	Password string
	Device   DeviceInfo
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Session   *Session
	Device    Device
}

// HealthStatus is the point-in-time dependency report returned by Health.
type HealthStatus struct {
	CacheAvailable bool
	CacheLatency   time.Duration
	StoreAvailable bool
}

// AuditEvent is one structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel, mostly for tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON document per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs each event through a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a [SlogSink] logging to logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
