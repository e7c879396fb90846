// Package auth provides JWT-based authentication for cobranzas-engine.
// Tokens are issued by the login endpoint and signed with a shared HS256 secret.
package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
)

// Issuer is the iss claim of every session token.
const Issuer = "cobranzas-engine"

// Claims represents the session token. Subject carries the numeric user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"usr,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UserID parses the numeric user id from the subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// IsAdmin reports whether the token belongs to an administrator.
func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// IsGestor reports whether the token belongs to a collection agent.
func (c *Claims) IsGestor() bool {
	return c.Role == models.RoleGestor
}

// HasRole reports whether the claims carry any of the given roles.
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// WithClaims returns a context carrying the claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
