package auth

import (
	"context"
	"fmt"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns 0 if not authenticated or the subject is not numeric.
func GetUserIDFromContext(ctx context.Context) int64 {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return 0
	}
	id, err := claims.UserID()
	if err != nil {
		return 0
	}
	return id
}

// RequireClaimsFromContext returns the claims or an error when the request is unauthenticated.
func RequireClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return nil, fmt.Errorf("authentication required: no claims in context")
	}
	return claims, nil
}

// RequireUserIDFromContext extracts the user ID from context and returns an error if not found.
func RequireUserIDFromContext(ctx context.Context) (int64, error) {
	claims, err := RequireClaimsFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}
