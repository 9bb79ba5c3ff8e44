package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/rs/zerolog/log"
)

// Credentials is the input of a login attempt. Local logins use Username
// and Password; OAuth callbacks use Code and State.
type Credentials struct {
	Username string
	Password string
	Code     string
	State    string
}

// Authenticator obtains a session from one identity provider. It may write
// to store while it works but must leave no session keys behind on error.
type Authenticator interface {
	Authenticate(ctx context.Context, store session.Store, creds Credentials) (*models.Session, error)
}

// AuthService dispatches logins to the authenticator registered for each
// provider and persists the resulting session.
type AuthService struct {
	mu             sync.RWMutex
	authenticators map[models.Provider]Authenticator
}

// NewAuthService creates a service with no providers registered.
func NewAuthService() *AuthService {
	return &AuthService{authenticators: make(map[models.Provider]Authenticator)}
}

// Register makes provider available for Authenticate.
func (s *AuthService) Register(provider models.Provider, a Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticators[provider] = a
}

// Enabled reports whether provider has a registered authenticator.
func (s *AuthService) Enabled(provider models.Provider) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.authenticators[provider]
	return ok
}

// Authenticate runs the login for provider, saves the session to store and
// replaces the current view with /chat so navigating back cannot return to
// the login form. nav may be nil.
//
// Parameters:
//   - ctx: Context for timeout and cancellation
//   - store: The browser or terminal context receiving the session
//   - nav: Navigation hook invoked on success
//   - provider: Which identity provider to use
//   - creds: Username/password for local, code/state for OAuth
//
// Example:
//
//	sess, err := authSvc.Authenticate(ctx, store, nav, models.ProviderLocal, services.Credentials{
//	    Username: "ana",
//	    Password: "secret",
//	})
//	if errors.Is(err, services.ErrInvalidCredentials) {
//	    // show err.Error() next to the form
//	}
func (s *AuthService) Authenticate(ctx context.Context, store session.Store, nav session.Navigator, provider models.Provider, creds Credentials) (*models.Session, error) {
	s.mu.RLock()
	a, ok := s.authenticators[provider]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", provider, ErrProviderDisabled)
	}

	sess, err := a.Authenticate(ctx, store, creds)
	if err != nil {
		return nil, err
	}
	sess.Provider = provider

	if err := session.Save(ctx, store, sess); err != nil {
		if clearErr := session.Clear(ctx, store); clearErr != nil {
			log.Error().Err(clearErr).Msg("Failed to clear store after failed save")
		}
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	log.Info().
		Str("provider", provider.String()).
		Str("user_id", userID(sess)).
		Msg("User authenticated successfully")

	if nav != nil {
		nav.Replace(session.PathChat)
	}
	return sess, nil
}

// Logout removes the session from store. The theme preference is kept.
func (s *AuthService) Logout(ctx context.Context, store session.Store) error {
	return session.Clear(ctx, store)
}

func userID(sess *models.Session) string {
	if sess.User == nil {
		return ""
	}
	return sess.User.ID.String()
}
