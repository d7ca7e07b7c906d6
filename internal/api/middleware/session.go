package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sentiq/sentiq-api/internal/api/shared"
	"github.com/sentiq/sentiq-api/internal/service"
)

// SessionCookieName is the cookie that carries the anonymous session ID.
const SessionCookieName = "sentiq_session"

// sessionCookieMaxAge keeps the cookie for a year of inactivity.
const sessionCookieMaxAge = int(365 * 24 * time.Hour / time.Second)

// SessionMiddleware attributes every request to an anonymous user. A
// missing or malformed cookie gets a fresh UUID; the session row is
// upserted so last-activity tracking stays current, and the user ID is
// placed on the context for handlers.
//
// Session persistence is best effort: a failing session store must not
// take the task API down with it.
func SessionMiddleware(sessions service.SessionService, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "session_middleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = cookie.Value
				}
			}

			if sessionID == "" {
				sessionID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   sessionCookieMaxAge,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// The session ID doubles as the user ID: sessions are
			// anonymous and one browser is one user.
			userID := sessionID

			if sessions != nil {
				_, err := sessions.Touch(r.Context(), sessionID, userID, clientIP(r), r.UserAgent())
				if err != nil {
					log.Warn("failed to record session activity",
						"error", err,
						"session_id", sessionID)
				}
			}

			ctx := shared.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP returns the remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
