// Package owner resolves the owner id every ledger call is scoped to. With
// no secret configured the id is read from the X-Owner-ID header; with a
// secret it is the subject of an HS256 bearer token.
package owner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Header carries the owner id when tokens are not required.
const Header = "X-Owner-ID"

type contextKey struct{}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token payload; the owner id is the registered subject.
type Claims struct {
	jwt.RegisteredClaims
}

type Resolver struct {
	secret []byte
}

// NewResolver returns a resolver; an empty secret selects header mode.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

func (o *Resolver) RequiresToken() bool {
	return len(o.secret) > 0
}

// Resolve returns the owner id for r. In header mode a missing header
// yields "" and the services reject the call.
func (o *Resolver) Resolve(r *http.Request) (string, error) {
	if !o.RequiresToken() {
		return strings.TrimSpace(r.Header.Get(Header)), nil
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return o.parse(strings.TrimSpace(token))
}

func (o *Resolver) parse(tokenStr string) (string, error) {
	claims := new(Claims)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return o.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware stores the resolved owner id in the request context. onError
// writes the response when the token is missing or invalid.
func (o *Resolver) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, err := o.Resolve(r)
			if err != nil {
				if onError != nil {
					onError(w, r, err)
				} else {
					http.Error(w, err.Error(), http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), ownerID)))
		})
	}
}

// IssueToken signs an HS256 token for ownerID valid for ttl.
func IssueToken(secret, ownerID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, contextKey{}, ownerID)
}

// FromContext returns the owner id stored by Middleware, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Key is the rate-limit key: the owner when known, else fallback.
func Key(r *http.Request, fallback func(*http.Request) string) string {
	if id := FromContext(r.Context()); id != "" {
		return "owner:" + id
	}
	return "ip:" + fallback(r)
}
