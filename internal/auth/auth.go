package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
)

// Headers accepted in place of a token when the verifier runs in dev mode.
const (
	HeaderDevUserID   = "X-Dev-User-ID"
	HeaderDevUserName = "X-Dev-User-Name"
	HeaderDevRole     = "X-Dev-Role"
)

// Principal is the caller identified by a bearer token.
type Principal struct {
	UserID   string
	UserName string
	Role     string
}

// Claims is the token payload issued by the identity service.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens.
type Verifier struct {
	secret   []byte
	issuer   string
	allowDev bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithIssuer requires tokens to carry the given iss claim.
func WithIssuer(iss string) Option {
	return func(v *Verifier) { v.issuer = iss }
}

// WithDevHeaders lets requests identify themselves through X-Dev-* headers.
// Only for local development.
func WithDevHeaders() Option {
	return func(v *Verifier) { v.allowDev = true }
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{secret: []byte(secret)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ParseToken validates a signed token and returns its principal.
func (v *Verifier) ParseToken(tokenStr string) (*Principal, error) {
	if len(v.secret) == 0 {
		return nil, errors.New(errors.ErrCodeUnauthorized, "token verification is not configured")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "invalid token")
	}
	if !token.Valid {
		return nil, errors.New(errors.ErrCodeUnauthorized, "invalid token")
	}

	if claims.Subject == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "token has no subject")
	}
	if claims.Role == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "token has no role")
	}

	return &Principal{UserID: claims.Subject, UserName: claims.Name, Role: claims.Role}, nil
}

// Authenticate extracts the principal from an HTTP request.
func (v *Verifier) Authenticate(r *http.Request) (*Principal, error) {
	if v.allowDev {
		if id := r.Header.Get(HeaderDevUserID); id != "" {
			return &Principal{
				UserID:   id,
				UserName: r.Header.Get(HeaderDevUserName),
				Role:     r.Header.Get(HeaderDevRole),
			}, nil
		}
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New(errors.ErrCodeUnauthorized, "missing bearer token")
	}
	return v.ParseToken(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
}

// IssueToken signs a token for p valid for ttl. Used by tooling and tests.
func IssueToken(secret string, p Principal, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: p.UserName,
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type ctxKey struct{}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by Middleware, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}
