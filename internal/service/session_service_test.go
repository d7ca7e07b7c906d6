package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/store"
)

// mockSessionStore is a hand-rolled store.SessionStore with overridable
// behavior, backed by a map.
type mockSessionStore struct {
	sessions map[string]*domain.UserSession

	UpsertFn func(ctx context.Context, session *domain.UserSession) error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*domain.UserSession)}
}

func (m *mockSessionStore) Upsert(ctx context.Context, session *domain.UserSession) error {
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, session)
	}
	m.sessions[session.SessionID] = session
	return nil
}

func (m *mockSessionStore) GetBySessionID(ctx context.Context, sessionID string) (*domain.UserSession, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return session, nil
}

func (m *mockSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return m
}

func newTestSessionService(t *testing.T, sessions store.SessionStore) SessionService {
	t.Helper()
	svc, err := NewSessionService(sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return svc
}

func TestNewSessionService_NilStore(t *testing.T) {
	t.Parallel()

	_, err := NewSessionService(nil, nil)
	assert.Error(t, err)
}

func TestSessionService_Touch(t *testing.T) {
	t.Parallel()

	t.Run("creates session on first sight", func(t *testing.T) {
		t.Parallel()
		sessions := newMockSessionStore()
		svc := newTestSessionService(t, sessions)

		session, err := svc.Touch(context.Background(), "sess-1", "sess-1", "10.0.0.1", "curl/8.0")
		require.NoError(t, err)
		assert.Equal(t, "sess-1", session.SessionID)
		assert.Equal(t, "sess-1", session.UserID)

		stored, err := svc.Get(context.Background(), "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1", stored.IPAddress)
	})

	t.Run("empty session ID rejected", func(t *testing.T) {
		t.Parallel()
		svc := newTestSessionService(t, newMockSessionStore())

		_, err := svc.Touch(context.Background(), "", "user-1", "10.0.0.1", "curl/8.0")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmptySessionID)
	})

	t.Run("store failure wrapped", func(t *testing.T) {
		t.Parallel()
		sessions := newMockSessionStore()
		sessions.UpsertFn = func(ctx context.Context, session *domain.UserSession) error {
			return errors.New("connection refused")
		}
		svc := newTestSessionService(t, sessions)

		_, err := svc.Touch(context.Background(), "sess-1", "sess-1", "10.0.0.1", "curl/8.0")
		require.Error(t, err)
		var svcErr *TaskServiceError
		assert.ErrorAs(t, err, &svcErr)
	})
}

func TestSessionService_Get_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestSessionService(t, newMockSessionStore())

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
