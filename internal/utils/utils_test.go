package utils

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, model.RoleDriver, 5)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.UserID != 42 || c.Role != model.RoleDriver {
		t.Fatalf("claims = %+v", c)
	}
	if _, err := ParseAccessToken("other", tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret accepted: %v", err)
	}
}

func TestParseRejects(t *testing.T) {
	expired, _ := NewAccessToken("s", 1, model.RoleAdmin, -1)
	if _, err := ParseAccessToken("s", expired.Token); err == nil {
		t.Fatal("expired token accepted")
	}
	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "role": "owner"})
	raw, _ := badRole.SignedString([]byte("s"))
	if _, err := ParseAccessToken("s", raw); err == nil {
		t.Fatal("unknown role accepted")
	}
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "role": "admin"})
	raw, _ = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ParseAccessToken("s", raw); err == nil {
		t.Fatal("alg=none accepted")
	}
}

func TestRefreshTokenHash(t *testing.T) {
	r, err := NewRefreshToken(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Raw) != 96 {
		t.Fatalf("raw length = %d", len(r.Raw))
	}
	if HashRefreshRaw(r.Raw) != HashRefreshRaw(r.Raw) || HashRefreshRaw(r.Raw) == HashRefreshRaw(r.Raw+"x") {
		t.Fatal("hash not deterministic or collides")
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("pw", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "pw") || VerifyPassword(h, "nope") {
		t.Fatal("verify mismatch")
	}
}
