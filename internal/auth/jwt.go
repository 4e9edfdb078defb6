package auth

import (
	"context"
	"strconv"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"droneFleetManagement/internal/fault"
	"droneFleetManagement/models"
)

// Caller kinds carried in token claims.
const (
	KindUser  = "user"
	KindDrone = "drone"
)

// Principal represents the authenticated caller from JWT.
type Principal struct {
	Subject int64       // user id or drone id, depending on Kind
	Kind    string      // "user" | "drone"
	Role    models.Role // only meaningful for user principals
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

type claims struct {
	Kind string `json:"kind"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 JWT and extracts the Principal.
func ParseToken(tokenStr, secret string) (*Principal, error) {
	if secret == "" {
		return nil, fault.Unauthorizedf("jwt secret is empty")
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fault.Unauthorizedf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, fault.Unauthorizedf("invalid or expired token")
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.Subject == "" || c.Kind == "" {
		return nil, fault.Unauthorizedf("invalid claims")
	}
	sub, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, fault.Unauthorizedf("invalid subject claim")
	}
	return &Principal{
		Subject: sub,
		Kind:    strings.ToLower(c.Kind),
		Role:    models.Role(strings.ToLower(c.Role)),
	}, nil
}

// ParseBearer extracts and validates a Bearer JWT from an Authorization
// header value.
func ParseBearer(header, secret string) (*Principal, error) {
	if header == "" {
		return nil, fault.Unauthorizedf("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fault.Unauthorizedf("invalid authorization header")
	}
	return ParseToken(strings.TrimSpace(parts[1]), secret)
}
