// Package auth resolves the bearer token on an inbound request into a
// user id, either by treating the token as a literal id (UID mode, used in
// development and in tests) or by validating it as a signed JWT (JWT mode).
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hyu9999/paper-trading-1/internal/config"
	"github.com/hyu9999/paper-trading-1/internal/domain"
)

// accessClaims is the JWT claim set issued for a logged-in user.
type accessClaims struct {
	jwt.RegisteredClaims
	Subject string `json:"subject"`
}

// Issuer mints and validates access tokens.
type Issuer struct {
	secret        []byte
	algorithm     string
	accessTTL     time.Duration
}

// NewIssuer builds an Issuer from process configuration.
func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		secret:    []byte(cfg.JWTSecret),
		algorithm: cfg.JWTAlgorithm,
		accessTTL: time.Duration(cfg.JWTAccessTokenMinutes) * time.Minute,
	}
}

// IssueAccessToken mints a signed access token for userID.
func (i *Issuer) IssueAccessToken(userID string) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		Subject: "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateAccessToken parses and verifies tok, returning the user id
// carried in its subject claim.
func (i *Issuer) ValidateAccessToken(tok string) (string, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", domain.ErrInvalidAuthToken(err)
	}
	if !parsed.Valid {
		return "", domain.ErrInvalidAuthToken(fmt.Errorf("token not valid"))
	}
	return claims.RegisteredClaims.Subject, nil
}

// ctxKey is the context key type under which the resolved user id is
// stored on the request context.
type ctxKey int

const userIDKey ctxKey = 1

// Resolver extracts a user id from an inbound request's Authorization
// header, in either UID or JWT mode.
type Resolver struct {
	tokenPrefix string
	mode        config.AuthMode
	issuer      *Issuer
}

// NewResolver builds a Resolver from process configuration.
func NewResolver(cfg *config.Config, issuer *Issuer) *Resolver {
	return &Resolver{tokenPrefix: cfg.TokenPrefix, mode: cfg.AuthMode, issuer: issuer}
}

// Resolve extracts and validates the bearer token from r, returning the
// resolved user id.
func (res *Resolver) Resolve(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", domain.ErrAuthHeaderNotFound()
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", domain.ErrWrongTokenFormat()
	}
	if !strings.EqualFold(parts[0], res.tokenPrefix) {
		return "", domain.ErrInvalidAuthTokenPrefix()
	}
	token := parts[1]

	switch res.mode {
	case config.AuthModeUID:
		if token == "" {
			return "", domain.ErrInvalidUserID(token)
		}
		return token, nil
	case config.AuthModeJWT:
		return res.issuer.ValidateAccessToken(token)
	default:
		return "", domain.ErrInvalidAuthToken(fmt.Errorf("unsupported auth mode %q", res.mode))
	}
}

// Middleware resolves the caller's user id and stores it on the request
// context before calling next. On failure it writes the mapped error via
// writeErr and does not call next.
func Middleware(res *Resolver, writeErr func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := res.Resolve(r)
			if err != nil {
				writeErr(w, err)
				return
			}
			ctx := contextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
