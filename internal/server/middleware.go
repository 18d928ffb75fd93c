package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/huddlehq/huddle/internal/store"
)

type contextKey int

const sessionContextKey contextKey = iota

// Session is the authenticated caller as the middleware resolved it.
// Exactly one of Invite or User is the primary credential; CoachUserID is
// set when a coach acts through a team invite.
type Session struct {
	Invite      *store.Invite
	Team        *store.Team
	User        *store.User
	CoachUserID string
}

// ActorID is the stable id audit events and ownership records use.
func (s *Session) ActorID() string {
	switch {
	case s.CoachUserID != "":
		return s.CoachUserID
	case s.User != nil:
		return s.User.ID
	case s.Invite != nil:
		return s.Invite.ID
	}
	return "anonymous"
}

// IsAdmin reports whether the caller holds admin rights on the open team.
func (s *Session) IsAdmin() bool {
	if s.User != nil || s.CoachUserID != "" {
		return true
	}
	return s.Invite != nil && s.Invite.Role == "admin"
}

func sessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey).(*Session)
	return sess
}

// AuthMetrics is the slice of the metrics surface auth middleware uses.
type AuthMetrics interface {
	IncAuthSuccess(authType string)
	IncAuthFailure(authType string)
}

// sessionAuth authenticates via x-invite-token or x-user-token and injects
// the resolved Session. Invite auth wins when both headers are present,
// mirroring how a coach operates inside an open team.
func sessionAuth(invites InviteStore, users UserStore, teams TeamStore, m AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := r.Header.Get("x-invite-token"); token != "" {
				invite, err := invites.GetByToken(r.Context(), token)
				if err != nil || invite.RevokedAt != nil {
					m.IncAuthFailure("invite_token")
					writeError(w, http.StatusUnauthorized, "invalid_token", "Invite token is not valid")
					return
				}
				team, err := teams.GetByID(r.Context(), invite.TeamID)
				if err != nil {
					m.IncAuthFailure("invite_token")
					writeError(w, http.StatusUnauthorized, "invalid_token", "Invite token is not valid")
					return
				}
				m.IncAuthSuccess("invite_token")
				sess := &Session{
					Invite:      invite,
					Team:        team,
					CoachUserID: r.Header.Get("x-coach-user-id"),
				}
				next.ServeHTTP(w, r.WithContext(
					context.WithValue(r.Context(), sessionContextKey, sess)))
				return
			}

			if token := r.Header.Get("x-user-token"); token != "" {
				user, err := users.GetByToken(r.Context(), token)
				if err != nil {
					m.IncAuthFailure("user_token")
					writeError(w, http.StatusUnauthorized, "invalid_token", "User token is not valid")
					return
				}
				m.IncAuthSuccess("user_token")
				sess := &Session{User: user}
				next.ServeHTTP(w, r.WithContext(
					context.WithValue(r.Context(), sessionContextKey, sess)))
				return
			}

			m.IncAuthFailure("none")
			writeError(w, http.StatusUnauthorized, "missing_token", "No session token")
		})
	}
}

// userAuth requires a valid x-user-token; coach-only surfaces use it.
func userAuth(users UserStore, m AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("x-user-token")
			if token == "" {
				m.IncAuthFailure("user_token")
				writeError(w, http.StatusUnauthorized, "missing_token", "No user token")
				return
			}
			user, err := users.GetByToken(r.Context(), token)
			if err != nil {
				m.IncAuthFailure("user_token")
				writeError(w, http.StatusUnauthorized, "invalid_token", "User token is not valid")
				return
			}
			m.IncAuthSuccess("user_token")
			sess := &Session{User: user}
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), sessionContextKey, sess)))
		})
	}
}

// slogRequestLogger is a structured logging middleware.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// RequestMetrics is the slice of the metrics surface the HTTP middleware
// uses.
type RequestMetrics interface {
	IncHTTPRequest(method, pathPattern string, statusCode int)
	ObserveHTTPDuration(method, pathPattern string, seconds float64)
}

func metricsMiddleware(m RequestMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			pattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			m.IncHTTPRequest(r.Method, pattern, ww.Status())
			m.ObserveHTTPDuration(r.Method, pattern, time.Since(start).Seconds())
		})
	}
}
