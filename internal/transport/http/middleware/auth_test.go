package httpmw

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/collabcode/hub-service/internal/domain"
	"github.com/collabcode/hub-service/internal/security"

	"github.com/golang-jwt/jwt"
)

func newVerifier(t *testing.T) (*security.Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return security.NewVerifier(&key.PublicKey, "", "", 0), key
}

func mint(t *testing.T, key *rsa.PrivateKey, sub string, exp time.Time) string {
	t.Helper()
	claims := security.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   sub,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: exp.Unix(),
		},
		Name: "alice",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestAuthPassesIdentityThrough(t *testing.T) {
	verifier, key := newVerifier(t)

	var got domain.Identity
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFromCtx(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, key, "42", time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()

	Auth(verifier)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !ok {
		t.Fatal("identity missing from context")
	}
	if got.UserID != 42 || got.Username != "alice" {
		t.Errorf("identity = %+v", got)
	}
}

func TestAuthRejections(t *testing.T) {
	verifier, key := newVerifier(t)

	cases := map[string]struct {
		header string
		reason string
	}{
		"no header":     {"", security.ReasonAuthMissing},
		"not bearer":    {"Basic abc", security.ReasonAuthMissing},
		"garbage token": {"Bearer garbage", security.ReasonAuthMalformed},
		"expired token": {"Bearer " + mint(t, key, "1", time.Now().Add(-time.Minute)), security.ReasonAuthExpired},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without valid token")
	})

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			Auth(verifier)(next).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body %s: %v", rec.Body, err)
			}
			if body.Error != tc.reason {
				t.Errorf("error = %q, want %q", body.Error, tc.reason)
			}
		})
	}
}
