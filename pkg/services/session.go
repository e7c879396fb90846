package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/audit"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/repositories"
)

// LoginResult is an issued session.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// SessionService authenticates users and resolves the current user.
type SessionService interface {
	// Login checks credentials and issues a token. Unknown users and wrong
	// passwords both return apperrors.ErrInvalidCredentials.
	Login(ctx context.Context, username, password, clientIP string) (*LoginResult, error)
	// CurrentUser loads the user named by the request's token.
	CurrentUser(ctx context.Context) (*models.User, error)
}

type sessionService struct {
	users   repositories.UserRepository
	tokens  auth.TokenManager
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(users repositories.UserRepository, tokens auth.TokenManager, auditor *audit.SecurityAuditor, logger *zap.Logger) SessionService {
	return &sessionService{
		users:   users,
		tokens:  tokens,
		auditor: auditor,
		logger:  logger.Named("session"),
	}
}

var _ SessionService = (*sessionService)(nil)

func (s *sessionService) Login(ctx context.Context, username, password, clientIP string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username", "username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.auditor.LogLogin(ctx, username, 0, false, "unknown_user", clientIP)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("Stored password hash is unusable", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, apperrors.ErrInvalidCredentials
	}
	if !ok {
		s.auditor.LogLogin(ctx, username, user.ID, false, "invalid_credentials", clientIP)
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.Active {
		s.auditor.LogLogin(ctx, username, user.ID, false, "inactive_user", clientIP)
		return nil, apperrors.ErrInactiveUser
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.auditor.LogLogin(ctx, username, user.ID, true, "", clientIP)
	return &LoginResult{User: user, Token: token, ExpiresAt: expires}, nil
}

func (s *sessionService) CurrentUser(ctx context.Context) (*models.User, error) {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return nil, apperrors.ErrForbidden
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apperrors.ErrInactiveUser
	}
	return user, nil
}
