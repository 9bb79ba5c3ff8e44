package session

import (
	"context"
	"net/http"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/rs/zerolog/log"
)

// Navigation targets.
const (
	PathAuth = "/auth"
	PathChat = "/chat"
)

// Navigator moves the client between views. Push adds a history entry;
// Replace overwrites the current one so "back" cannot return to it.
type Navigator interface {
	Push(path string)
	Replace(path string)
}

// Notifier tells the user that the session ended.
type Notifier interface {
	SessionExpired()
}

// Guard protects views that need an authenticated session. It never
// refreshes tokens: once the backend rejects a token the session is over.
type Guard struct {
	store     Store
	navigator Navigator
	notifier  Notifier

	// RedirectDelay is how long OnResponse waits after notifying before it
	// navigates to the login view.
	RedirectDelay time.Duration

	now func() time.Time
}

// NewGuard creates a guard over store. notifier may be nil.
//
// Example:
//
//	guard := session.NewGuard(store, navigator, notifier, time.Second)
//	sess, err := guard.RequireSession(ctx)
//	if err != nil {
//	    return // navigator already sent the user to /auth
//	}
func NewGuard(store Store, navigator Navigator, notifier Notifier, redirectDelay time.Duration) *Guard {
	return &Guard{
		store:         store,
		navigator:     navigator,
		notifier:      notifier,
		RedirectDelay: redirectDelay,
		now:           time.Now,
	}
}

// Store returns the guarded store.
func (g *Guard) Store() Store {
	return g.store
}

// RequireSession returns the current session or sends the user to /auth.
//
// Returns ErrNoSession when there is no access token and ErrSessionExpired
// when the token is a JWT whose exp claim has passed (the store is cleared
// in that case).
func (g *Guard) RequireSession(ctx context.Context) (*models.Session, error) {
	s, err := Load(ctx, g.store)
	if err != nil {
		return nil, err
	}

	if !s.Authenticated() {
		g.navigator.Push(PathAuth)
		return nil, ErrNoSession
	}

	if g.Expired(s) {
		log.Info().Str("provider", s.Provider.String()).Msg("Access token expired locally")
		g.expire(ctx, 0)
		return nil, ErrSessionExpired
	}

	return s, nil
}

// OnResponse inspects the status of any authenticated backend call.
// For 401 and 403 it notifies the user, clears the session and navigates to
// /auth after RedirectDelay, then returns true so the caller skips its own
// error reporting. Any other status returns false.
func (g *Guard) OnResponse(ctx context.Context, status int) bool {
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return false
	}

	log.Info().Int("status", status).Msg("Backend rejected session")
	g.expire(ctx, g.RedirectDelay)
	return true
}

// Expired reports whether the access token is a JWT with an exp claim in
// the past. Signatures are not checked; opaque tokens are never expired.
func (g *Guard) Expired(s *models.Session) bool {
	if !s.Authenticated() {
		return false
	}
	exp, ok := TokenExpiry(s.AccessToken)
	if !ok {
		return false
	}
	return !g.now().Before(exp)
}

func (g *Guard) expire(ctx context.Context, delay time.Duration) {
	if g.notifier != nil {
		g.notifier.SessionExpired()
	}

	if err := Clear(ctx, g.store); err != nil {
		log.Error().Err(err).Msg("Failed to clear expired session")
	}

	if delay <= 0 {
		g.navigator.Push(PathAuth)
		return
	}
	time.AfterFunc(delay, func() {
		g.navigator.Push(PathAuth)
	})
}
