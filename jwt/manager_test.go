package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret-test-secret-test-secret"),
		Issuer:        "bizauth",
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	access, err := m.CreateAccess("alice", "id-1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	refresh, err := m.CreateRefresh("alice", "id-1")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if access.CSRF == refresh.CSRF {
		t.Fatal("expected distinct csrf values per token")
	}

	claims, err := m.ParseAccess(access.Value)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Username() != "alice" || claims.UserID != "id-1" || claims.CSRF != access.CSRF || claims.ID != access.JTI {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	rc, err := m.ParseRefresh(refresh.Value)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if rc.CSRF != refresh.CSRF {
		t.Fatal("refresh csrf mismatch")
	}
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	m := newHSManager(t, nil)
	refresh, err := m.CreateRefresh("alice", "")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if _, err := m.ParseAccess(refresh.Value); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestParseReportsExpiry(t *testing.T) {
	issued := time.Now()
	clock := issued
	m := newHSManager(t, func() time.Time { return clock })

	access, err := m.CreateAccess("alice", "")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	clock = issued.Add(2 * time.Hour)

	_, err = m.ParseAccess(access.Value)
	if !IsExpired(err) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := newHSManager(t, nil)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	claims := Claims{Type: TypeAccess, CSRF: "c", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "bizauth",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	signed, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.ParseAccess(signed); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	m := newHSManager(t, nil)
	other, err := NewManager(Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("another-secret-another-secret-xx"),
		Issuer:        "bizauth",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, err := other.CreateAccess("alice", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.ParseAccess(tok.Value); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestEd25519Manager(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, err := m.CreateAccess("bob", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.ParseAccess(tok.Value); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodHS256},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
