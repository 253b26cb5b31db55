package domain

import "time"

// Session is an authenticated local-market broker session. Only the resulting
// token is consumed here; the authentication handshake lives in the broker
// integration.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the session token can still be used.
func (s Session) Valid() bool {
	return s.AccessToken != "" && time.Now().Before(s.ExpiresAt)
}

// Access is the local-market capability for an evaluation: either
// Authenticated with a broker session or Unauthenticated. Modeling this as a
// closed two-variant type keeps "mode" out of mutable flags; resolvers
// dispatch on the variant.
type Access interface {
	isAccess()
}

// Authenticated grants direct access to the local broker API.
type Authenticated struct {
	Session Session
}

func (Authenticated) isAccess() {}

// Unauthenticated restricts resolution to public sources and the theoretical
// fallback.
type Unauthenticated struct{}

func (Unauthenticated) isAccess() {}

// SessionFrom extracts a usable session from an access value. ok is false for
// unauthenticated access or an expired session.
func SessionFrom(access Access) (Session, bool) {
	a, isAuth := access.(Authenticated)
	if !isAuth || !a.Session.Valid() {
		return Session{}, false
	}
	return a.Session, true
}
