package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken    = errors.New("missing or invalid token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionMismatch = errors.New("token does not grant access to this session")
)

const issuerName = "finanalyst"

// Issuer signs and checks session tokens. A token grants access to exactly
// one session: its subject.
type Issuer struct {
	secret   []byte
	ttl      time.Duration
	disabled bool
	now      func() time.Time
}

// NewIssuer returns an issuer for secret. With an empty secret a random one is
// drawn, so tokens stop validating after a restart, like the sessions they
// point to.
func NewIssuer(secret string, ttl time.Duration, disabled bool) (*Issuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: key, ttl: ttl, disabled: disabled, now: time.Now}, nil
}

func (i *Issuer) Disabled() bool { return i.disabled }

func (i *Issuer) Issue(sessionID string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuerName,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify returns the session id carried by token.
func (i *Issuer) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

type ctxKey struct{}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func SessionIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}

// BearerToken reads the Authorization header, falling back to the token query
// parameter for clients that cannot set headers (browser websockets).
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Middleware guards session routes. sessionID extracts the session the
// request targets; deny writes the rejection.
func (i *Issuer) Middleware(sessionID func(*http.Request) string, deny func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if i.disabled {
				next.ServeHTTP(w, r)
				return
			}
			tok := BearerToken(r)
			if tok == "" {
				deny(w, r, ErrMissingToken)
				return
			}
			sub, err := i.Verify(tok)
			if err != nil {
				deny(w, r, err)
				return
			}
			if want := sessionID(r); want != "" && want != sub {
				deny(w, r, ErrSessionMismatch)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sub)))
		})
	}
}
