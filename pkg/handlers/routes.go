package handlers

import (
	"net/http"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

// ScopeMiddleware attaches a pooled database connection to the request.
// Production wiring passes database.WithScope; tests pass a pass-through.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// adminOnly wraps h for administrators, with a database scope.
func adminOnly(authMiddleware *auth.Middleware, scope ScopeMiddleware, h http.HandlerFunc) http.HandlerFunc {
	return authMiddleware.RequireRole(models.RoleAdmin)(scope(h))
}

// staff wraps h for administrators and gestors, with a database scope.
func staff(authMiddleware *auth.Middleware, scope ScopeMiddleware, h http.HandlerFunc) http.HandlerFunc {
	return authMiddleware.RequireRole(models.RoleAdmin, models.RoleGestor)(scope(h))
}
