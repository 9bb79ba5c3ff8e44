// Package session holds the client-side session state of a browser or
// terminal context: a small key/value Store, helpers that read and write a
// complete Session through it, and the Guard that enforces authentication
// and reacts to expired credentials.
//
// The key names match what the browser front-end keeps in local storage, so
// a context written by the gateway can be read by either client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/rs/zerolog/log"
)

// Persisted keys.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUserData     = "userData"
	KeyAuthProvider = "authProvider"
	KeyTheme        = "theme"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Keys lists the four keys that make up a session. Theme is a user
// preference and survives logout.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUserData, KeyAuthProvider}

var (
	// ErrNoSession is returned when a protected operation runs without an
	// access token.
	ErrNoSession = errors.New("no active session")

	// ErrSessionExpired is returned when the backend rejected the token
	// (401/403) or the token's own expiry has passed.
	ErrSessionExpired = errors.New("session expired")
)

// Store is the key/value storage behind a single browser or terminal
// context. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes a single key.
	Set(ctx context.Context, key, value string) error
	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// batchSetter is implemented by stores that can write several keys at once.
type batchSetter interface {
	SetMany(ctx context.Context, values map[string]string) error
}

// Save replaces the stored session with s. Keys for empty fields are
// removed so no value from a previous session survives.
//
// Example:
//
//	err := session.Save(ctx, store, &models.Session{
//	    AccessToken:  "A",
//	    RefreshToken: "B",
//	    User:         profile,
//	    Provider:     models.ProviderLocal,
//	})
func Save(ctx context.Context, store Store, s *models.Session) error {
	if !s.Authenticated() {
		return fmt.Errorf("refusing to save session without access token")
	}

	values := map[string]string{
		KeyAccessToken:  s.AccessToken,
		KeyAuthProvider: s.Provider.String(),
	}
	var stale []string

	if s.RefreshToken != "" {
		values[KeyRefreshToken] = s.RefreshToken
	} else {
		stale = append(stale, KeyRefreshToken)
	}

	if s.User != nil {
		data, err := json.Marshal(s.User)
		if err != nil {
			return fmt.Errorf("failed to encode user data: %w", err)
		}
		values[KeyUserData] = string(data)
	} else {
		stale = append(stale, KeyUserData)
	}

	if len(stale) > 0 {
		if err := store.Delete(ctx, stale...); err != nil {
			return fmt.Errorf("failed to remove stale session keys: %w", err)
		}
	}

	if bs, ok := store.(batchSetter); ok {
		if err := bs.SetMany(ctx, values); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	}

	// Access token last, so a partial write never looks authenticated.
	for _, key := range []string{KeyRefreshToken, KeyUserData, KeyAuthProvider, KeyAccessToken} {
		value, ok := values[key]
		if !ok {
			continue
		}
		if err := store.Set(ctx, key, value); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the session from the store. A store without an access token
// yields an unauthenticated, non-nil Session. A malformed userData value is
// logged and ignored.
func Load(ctx context.Context, store Store) (*models.Session, error) {
	s := &models.Session{}

	var err error
	if s.AccessToken, _, err = store.Get(ctx, KeyAccessToken); err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}
	if s.RefreshToken, _, err = store.Get(ctx, KeyRefreshToken); err != nil {
		return nil, fmt.Errorf("failed to read refresh token: %w", err)
	}

	provider, _, err := store.Get(ctx, KeyAuthProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth provider: %w", err)
	}
	s.Provider = models.ParseProvider(provider)

	raw, ok, err := store.Get(ctx, KeyUserData)
	if err != nil {
		return nil, fmt.Errorf("failed to read user data: %w", err)
	}
	if ok && raw != "" {
		var user models.UserProfile
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			log.Warn().Err(err).Msg("Ignoring malformed stored user data")
		} else {
			s.User = &user
		}
	}

	return s, nil
}

// Clear removes the four session keys. The theme preference is kept.
func Clear(ctx context.Context, store Store) error {
	if err := store.Delete(ctx, Keys...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Theme returns the stored theme, defaulting to "light".
func Theme(ctx context.Context, store Store) (string, error) {
	theme, ok, err := store.Get(ctx, KeyTheme)
	if err != nil {
		return "", fmt.Errorf("failed to read theme: %w", err)
	}
	if !ok || theme == "" {
		return ThemeLight, nil
	}
	return theme, nil
}

// SetTheme persists the theme preference. Only "light" and "dark" are
// accepted.
func SetTheme(ctx context.Context, store Store, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unsupported theme %q", theme)
	}
	return store.Set(ctx, KeyTheme, theme)
}
