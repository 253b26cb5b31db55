package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
	"github.com/agustinrios/cedearscan/internal/source/iol"
)

// sessionManager owns the broker session lifecycle. Access lazily logs in on
// first use, refreshes expired sessions, and degrades to Unauthenticated when
// the broker rejects us, so a broken login never takes the scanner down.
type sessionManager struct {
	auth    *iol.Authenticator
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	session domain.Session
}

// newSessionManager creates a manager around auth. auth may be nil when no
// broker credentials are configured; Access then always returns
// Unauthenticated.
func newSessionManager(auth *iol.Authenticator, timeout time.Duration, logger *slog.Logger) *sessionManager {
	return &sessionManager{
		auth:    auth,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "session")),
	}
}

// Access returns the current local-market capability. The handshake runs on
// its own deadline rather than the caller's context: a session outlives any
// single evaluation.
func (m *sessionManager) Access() domain.Access {
	if m == nil || m.auth == nil {
		return domain.Unauthenticated{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Valid() {
		return domain.Authenticated{Session: m.session}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if m.session.RefreshToken != "" {
		session, err := m.auth.Refresh(ctx, m.session)
		if err == nil {
			m.session = session
			m.logger.Info("broker session refreshed")
			return domain.Authenticated{Session: session}
		}
		m.logger.Warn("broker session refresh failed, retrying with login",
			slog.String("error", err.Error()),
		)
	}

	session, err := m.auth.Login(ctx)
	if err != nil {
		m.logger.Warn("broker login failed, continuing unauthenticated",
			slog.String("error", err.Error()),
		)
		m.session = domain.Session{}
		return domain.Unauthenticated{}
	}

	m.session = session
	m.logger.Info("broker session established",
		slog.Time("expires_at", session.ExpiresAt),
	)
	return domain.Authenticated{Session: session}
}
