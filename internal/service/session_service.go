package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/store"
)

// SessionService tracks anonymous client sessions so batches and polls
// from the same browser stay attributed to the same user identifier.
type SessionService interface {
	// Touch records activity for the session, creating it on first sight.
	Touch(ctx context.Context, sessionID, userID, clientIP, userAgent string) (*domain.UserSession, error)

	// Get retrieves a session by its identifier.
	// Returns ErrSessionNotFound when the session does not exist.
	Get(ctx context.Context, sessionID string) (*domain.UserSession, error)
}

type sessionServiceImpl struct {
	sessionStore store.SessionStore
	logger       *slog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessionStore store.SessionStore, logger *slog.Logger) (SessionService, error) {
	if sessionStore == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "sessionStore cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionServiceImpl{
		sessionStore: sessionStore,
		logger:       logger.With("component", "session_service"),
	}, nil
}

func (s *sessionServiceImpl) Touch(
	ctx context.Context,
	sessionID, userID, clientIP, userAgent string,
) (*domain.UserSession, error) {
	session, err := domain.NewUserSession(sessionID, userID, clientIP, userAgent)
	if err != nil {
		return nil, NewTaskServiceError("touch_session", "invalid session", err)
	}

	if err := s.sessionStore.Upsert(ctx, session); err != nil {
		s.logger.Error("failed to upsert session",
			"error", err,
			"session_id", sessionID)
		return nil, NewTaskServiceError("touch_session", "failed to save session", err)
	}

	return session, nil
}

func (s *sessionServiceImpl) Get(ctx context.Context, sessionID string) (*domain.UserSession, error) {
	session, err := s.sessionStore.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, NewTaskServiceError("get_session", "failed to query session", err)
	}
	return session, nil
}
