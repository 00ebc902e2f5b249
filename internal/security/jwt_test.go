package security

import (
	"testing"
	"time"
)

func TestTokenPairRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()

	pair, err := NewTokenPair(42, secret, 15*time.Minute, 24*time.Hour, now, "test-issuer")
	if err != nil {
		t.Fatalf("mint pair: %v", err)
	}

	access, err := ParseTokenOfType(pair.Access, secret, TokenTypeAccess)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	refresh, err := ParseTokenOfType(pair.Refresh, secret, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}

	for _, claims := range []*Claims{access, refresh} {
		id, err := claims.UserID()
		if err != nil {
			t.Fatalf("user id: %v", err)
		}
		if id != 42 {
			t.Fatalf("expected user id 42, got %d", id)
		}
		if claims.ID == "" {
			t.Fatalf("expected jti to be set")
		}
	}

	if access.ID == refresh.ID {
		t.Fatalf("access and refresh must carry distinct jti values")
	}
}

func TestParseTokenOfTypeRejectsWrongType(t *testing.T) {
	secret := []byte("test-secret")
	access, err := NewAccessToken(1, secret, time.Hour, time.Now(), "iss")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := ParseTokenOfType(access, secret, TokenTypeRefresh); err == nil {
		t.Fatalf("expected access token rejected as refresh")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	access, err := NewAccessToken(1, []byte("secret-a"), time.Hour, time.Now(), "iss")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := ParseToken(access, []byte("secret-b")); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	access, err := NewAccessToken(1, secret, time.Minute, time.Now().Add(-1*time.Hour), "iss")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := ParseToken(access, secret); err == nil {
		t.Fatalf("expected expired token rejected")
	}
}
