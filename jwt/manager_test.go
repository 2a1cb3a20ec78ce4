package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestIssueAndParseHS256(t *testing.T) {
	m, err := NewManager(Config{PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.TTL() != DefaultTokenTTL {
		t.Fatalf("expected default TTL, got %v", m.TTL())
	}

	token, issued, err := m.Issue("u1", "alice", "D1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Username != "alice" || claims.DeviceID != "D1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID != issued.ID || claims.ID == "" {
		t.Fatalf("expected jti to round-trip, got %q want %q", claims.ID, issued.ID)
	}
	if claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time) != DefaultTokenTTL {
		t.Fatalf("unexpected lifetime %v", claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time))
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	m, err := NewManager(Config{PrivateKey: testSecret, TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	a, _, err := m.Issue("u1", "alice", "D1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, _, err := m.Issue("u1", "alice", "D1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens for back-to-back logins")
	}
}

func TestIssueRequiresSubjectAndDevice(t *testing.T) {
	m, err := NewManager(Config{PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, _, err := m.Issue("", "alice", "D1"); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
	if _, _, err := m.Issue("u1", "alice", ""); !errors.Is(err, ErrMissingDevice) {
		t.Fatalf("expected ErrMissingDevice, got %v", err)
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewManager(Config{PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
	if _, err := NewManager(Config{PrivateKey: testSecret, Leeway: time.Hour}); err == nil {
		t.Fatal("expected oversized leeway to be rejected")
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	m, _ := NewManager(Config{PrivateKey: testSecret})
	other, _ := NewManager(Config{PrivateKey: []byte("ffffffffffffffffffffffffffffffff")})

	token, _, err := other.Issue("u1", "alice", "D1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
	if _, err := m.Parse("not.a.token"); err == nil {
		t.Fatal("expected garbage to be rejected")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{DeviceID: "D1", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseEd25519IssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TokenTTL:      time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "devauth",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.Issue("u1", "alice", "D1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(c Claims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	base := func(exp time.Time, iss, aud string) Claims {
		return Claims{DeviceID: "D1", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(exp.Add(-time.Minute)),
		}}
	}

	if _, err := m.Parse(sign(base(time.Now().Add(time.Minute), "other", "api"))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(sign(base(time.Now().Add(time.Minute), "devauth", "other"))); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.Parse(sign(base(time.Now().Add(-15*time.Second), "devauth", "api"))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Parse(sign(base(time.Now().Add(-2*time.Minute), "devauth", "api"))); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseRequiresDeviceClaim(t *testing.T) {
	m, _ := NewManager(Config{PrivateKey: testSecret})
	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrMissingDevice) {
		t.Fatalf("expected ErrMissingDevice, got %v", err)
	}
}
