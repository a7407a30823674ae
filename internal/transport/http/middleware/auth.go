package httpmw

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/collabcode/hub-service/internal/domain"
	"github.com/collabcode/hub-service/internal/security"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

type TokenVerifier interface {
	Verify(raw string, now time.Time) (domain.Identity, error)
}

// Auth requires a Bearer token and puts the verified identity on the
// request context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			var raw string
			if strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimSpace(auth[7:])
			}

			identity, err := verifier.Verify(raw, time.Now())
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	_, reason := security.CloseReason(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + reason + `"}`))
}

func IdentityFromCtx(ctx context.Context) (domain.Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return v, ok
}
