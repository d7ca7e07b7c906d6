package domain

import (
	"errors"
	"time"
)

// Common validation errors for UserSession
var (
	ErrEmptySessionID     = errors.New("session ID cannot be empty")
	ErrEmptySessionUserID = errors.New("session user ID cannot be empty")
)

// UserSession tracks last-seen metadata for a browser session. Sessions
// are keyed by an opaque session ID from a cookie and carry the user ID
// tasks are attributed to.
type UserSession struct {
	ID           int64     `json:"-"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewUserSession creates a UserSession with both timestamps set to now.
func NewUserSession(sessionID, userID, ip, agent string) (*UserSession, error) {
	now := time.Now().UTC()
	session := &UserSession{
		SessionID:    sessionID,
		UserID:       userID,
		IPAddress:    ip,
		UserAgent:    agent,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks the UserSession required fields.
func (s *UserSession) Validate() error {
	if s.SessionID == "" {
		return ErrEmptySessionID
	}
	if s.UserID == "" {
		return ErrEmptySessionUserID
	}
	return nil
}

// Touch refreshes LastActivity and overwrites the mutable metadata fields
// when new values are present.
func (s *UserSession) Touch(ip, agent string) {
	s.LastActivity = time.Now().UTC()
	if ip != "" {
		s.IPAddress = ip
	}
	if agent != "" {
		s.UserAgent = agent
	}
}
