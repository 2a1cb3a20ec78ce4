package jwt

import (
	"testing"
	"time"
)

// FuzzParse feeds arbitrary strings to Parse. Invalid input must be rejected
// with an error, never a panic.
func FuzzParse(f *testing.F) {
	mgr, err := NewManager(Config{
		TokenTTL:     5 * time.Minute,
		PrivateKey:   testSecret,
		Issuer:       "fuzz-test",
		Leeway:       30 * time.Second,
		MaxFutureIAT: 10 * time.Minute,
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := mgr.Issue("uid1", "alice", "dev1")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")
	f.Add(valid[:len(valid)-2])

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := mgr.Parse(token)
		if err == nil && (claims.Subject == "" || claims.DeviceID == "") {
			t.Fatalf("accepted token without subject or device: %+v", claims)
		}
	})
}
