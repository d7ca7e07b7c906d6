package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/platform/logger"
	"github.com/sentiq/sentiq-api/internal/store"
)

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the
// SessionStore interface. If logger is nil, a default logger will be used.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure PostgresSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*PostgresSessionStore)(nil)

// WithTx returns a new SessionStore that runs on the given transaction.
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{
		db:     tx,
		logger: s.logger,
	}
}

// Upsert implements store.SessionStore.Upsert using an ON CONFLICT update
// keyed by session_id, so create-or-refresh is a single statement.
func (s *PostgresSessionStore) Upsert(ctx context.Context, session *domain.UserSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("session_id", session.SessionID))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO user_sessions (session_id, user_id, ip_address, user_agent, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			ip_address = COALESCE(NULLIF(EXCLUDED.ip_address, ''), user_sessions.ip_address),
			user_agent = COALESCE(NULLIF(EXCLUDED.user_agent, ''), user_sessions.user_agent),
			last_activity = EXCLUDED.last_activity
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		session.SessionID,
		session.UserID,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.LastActivity,
	).Scan(&session.ID, &session.CreatedAt)

	if err != nil {
		log.Error("failed to upsert session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.SessionID))
		return err
	}

	log.Debug("session upserted",
		slog.String("session_id", session.SessionID),
		slog.String("user_id", session.UserID))
	return nil
}

// GetBySessionID implements store.SessionStore.GetBySessionID.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *PostgresSessionStore) GetBySessionID(
	ctx context.Context,
	sessionID string,
) (*domain.UserSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, session_id, user_id, ip_address, user_agent, created_at, last_activity
		FROM user_sessions
		WHERE session_id = $1
	`

	var session domain.UserSession
	var ip, agent sql.NullString

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.SessionID,
		&session.UserID,
		&ip,
		&agent,
		&session.CreatedAt,
		&session.LastActivity,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("session not found", slog.String("session_id", sessionID))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get session",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID))
		return nil, err
	}

	session.IPAddress = ip.String
	session.UserAgent = agent.String
	return &session, nil
}
