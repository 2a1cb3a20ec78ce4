package session

import "crypto/sha256"

// DeviceSnapshot is the device metadata captured at login.
type DeviceSnapshot struct {
	Name      string
	Type      string
	OS        string
	Browser   string
	IPAddress string
}

// Session is the cached, already-authorized view of one login.
//
// It is what ValidateToken hands back on success. It never carries the token
// itself; the slot stores only the token hash alongside it.
type Session struct {
	UserID      string
	Username    string
	DeviceID    string
	Roles       []string
	Permissions []string
	Device      DeviceSnapshot

	IssuedAt  int64
	ExpiresAt int64
}

// Entry is a Session plus the slot bookkeeping written by Put.
//
// Version is the device row's token version at login; Put refuses any version
// not above the highest one already published for that device.
type Entry struct {
	Session   *Session
	TokenHash [32]byte
	Version   int64
}

// HashToken returns the SHA-256 digest used to bind a token to a slot.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
