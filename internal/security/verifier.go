package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/collabcode/hub-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

// Используется SigningMethodRS256; выпуск токенов — вне этого сервиса,
// здесь только проверка.
type Verifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration
}

func NewVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *Verifier {
	return &Verifier{
		public:    public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}
}

type AccessClaims struct {
	jwt.StandardClaims
	Name string `json:"name,omitempty"`
}

// Verify checks the raw bearer token against the public key and the given
// clock and returns the identity carried in the claims. Pure function of
// token and clock, no side effects.
func (v *Verifier) Verify(raw string, now time.Time) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Identity{}, ErrTokenMissing
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, ErrTokenMalformed
		}
		return v.public, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			return domain.Identity{}, ErrTokenExpired
		}
		return domain.Identity{}, ErrTokenMalformed
	}
	if !token.Valid {
		return domain.Identity{}, ErrTokenMalformed
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return domain.Identity{}, ErrTokenMalformed
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return domain.Identity{}, ErrTokenMalformed
	}

	// временные клеймы с допуском clockSkew, относительно переданного now
	exp := time.Unix(claims.ExpiresAt, 0)
	if !now.Before(exp.Add(v.clockSkew)) {
		return domain.Identity{}, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return domain.Identity{}, ErrTokenExpired
	}

	userID, err := subjectAsUserID(claims)
	if err != nil {
		return domain.Identity{}, ErrTokenMalformed
	}
	name := claims.Name
	if name == "" {
		name = fmt.Sprintf("user-%d", userID)
	}

	return domain.Identity{
		UserID:      userID,
		Username:    name,
		TokenExpiry: exp,
	}, nil
}

func subjectAsUserID(claims *AccessClaims) (int64, error) {
	if claims.Subject == "" {
		return 0, ErrTokenMalformed
	}
	var id int64
	if _, err := fmt.Sscan(claims.Subject, &id); err != nil || id <= 0 {
		return 0, ErrTokenMalformed
	}

	return id, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", path, err)
	}

	return pub, nil
}
