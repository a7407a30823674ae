package security_test

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/collabcode/hub-service/internal/security"

	"github.com/golang-jwt/jwt"
)

const (
	testIssuer   = "test-auth"
	testAudience = "test-hub"
)

func newKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func mintToken(t *testing.T, key *rsa.PrivateKey, sub, name, iss, aud string, exp time.Time) string {
	t.Helper()
	claims := security.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   sub,
			Issuer:    iss,
			Audience:  aud,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: exp.Unix(),
		},
		Name: name,
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestVerify_ValidToken(t *testing.T) {
	key := newKeyPair(t)
	v := security.NewVerifier(&key.PublicKey, testIssuer, testAudience, 0)

	now := time.Now()
	exp := now.Add(time.Hour)
	raw := mintToken(t, key, "42", "alice", testIssuer, testAudience, exp)

	id, err := v.Verify(raw, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != 42 {
		t.Errorf("UserID = %d, want 42", id.UserID)
	}
	if id.Username != "alice" {
		t.Errorf("Username = %q, want alice", id.Username)
	}
	if id.TokenExpiry.Unix() != exp.Unix() {
		t.Errorf("TokenExpiry = %v, want %v", id.TokenExpiry, exp)
	}
}

func TestVerify_UsernameFallback(t *testing.T) {
	key := newKeyPair(t)
	v := security.NewVerifier(&key.PublicKey, testIssuer, testAudience, 0)

	raw := mintToken(t, key, "7", "", testIssuer, testAudience, time.Now().Add(time.Hour))
	id, err := v.Verify(raw, time.Now())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Username != "user-7" {
		t.Errorf("Username = %q, want user-7", id.Username)
	}
}

func TestVerify_Missing(t *testing.T) {
	key := newKeyPair(t)
	v := security.NewVerifier(&key.PublicKey, testIssuer, testAudience, 0)

	for _, raw := range []string{"", "   "} {
		if _, err := v.Verify(raw, time.Now()); !errors.Is(err, security.ErrTokenMissing) {
			t.Errorf("Verify(%q) = %v, want ErrTokenMissing", raw, err)
		}
	}
}

func TestVerify_Expired(t *testing.T) {
	key := newKeyPair(t)
	v := security.NewVerifier(&key.PublicKey, testIssuer, testAudience, 0)

	raw := mintToken(t, key, "42", "alice", testIssuer, testAudience, time.Now().Add(-time.Hour))
	if _, err := v.Verify(raw, time.Now()); !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("Verify = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_ExpiredRelativeToClock(t *testing.T) {
	key := newKeyPair(t)
	v := security.NewVerifier(&key.PublicKey, testIssuer, testAudience, 0)

	// token still valid by wall clock, expired relative to the passed now
	exp := time.Now().Add(time.Hour)
	raw := mintToken(t, key, "42", "alice", testIssuer, testAudience, exp)

	if _, err := v.Verify(raw, exp.Add(time.Minute)); !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("Verify = %v, want ErrTokenExpired", err)
	}
	// expiry exactly at now also counts as expired
	if _, err := v.Verify(raw, exp); !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("Verify at exact expiry = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	key := newKeyPair(t)
	v := security.NewVerifier(&key.PublicKey, testIssuer, testAudience, 0)
	now := time.Now()
	exp := now.Add(time.Hour)

	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject: "42", Issuer: testIssuer, Audience: testAudience, ExpiresAt: exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign hmac token: %v", err)
	}

	otherKey := newKeyPair(t)

	cases := map[string]string{
		"garbage":        "not-a-jwt",
		"wrong alg":      hmacToken,
		"wrong key":      mintToken(t, otherKey, "42", "alice", testIssuer, testAudience, exp),
		"wrong issuer":   mintToken(t, key, "42", "alice", "someone-else", testAudience, exp),
		"wrong audience": mintToken(t, key, "42", "alice", testIssuer, "someone-else", exp),
		"bad subject":    mintToken(t, key, "abc", "alice", testIssuer, testAudience, exp),
		"empty subject":  mintToken(t, key, "", "alice", testIssuer, testAudience, exp),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(raw, now); !errors.Is(err, security.ErrTokenMalformed) {
				t.Fatalf("Verify = %v, want ErrTokenMalformed", err)
			}
		})
	}
}

func TestCloseReason(t *testing.T) {
	cases := []struct {
		err    error
		code   int
		reason string
	}{
		{security.ErrTokenMissing, security.CloseCodeAuthMissing, security.ReasonAuthMissing},
		{security.ErrTokenExpired, security.CloseCodeAuthExpired, security.ReasonAuthExpired},
		{security.ErrTokenMalformed, security.CloseCodeAuthMalformed, security.ReasonAuthMalformed},
		{errors.New("anything else"), security.CloseCodeAuthMalformed, security.ReasonAuthMalformed},
	}
	for _, tc := range cases {
		code, reason := security.CloseReason(tc.err)
		if code != tc.code || reason != tc.reason {
			t.Errorf("CloseReason(%v) = (%d, %q), want (%d, %q)", tc.err, code, reason, tc.code, tc.reason)
		}
	}
}
