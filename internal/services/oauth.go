// Package services holds the gateway's business logic: identity provider
// adapters, the login orchestration that turns their results into a stored
// session, and the client for the assistant backend.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/cache"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

// StateCache stores OAuth state values. Take must delete the value it
// returns so each state can be used once. Implemented by *cache.Cache.
type StateCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Take(ctx context.Context, key string, target interface{}) error
}

// oauthState is what the gateway remembers about an issued state value.
type oauthState struct {
	Provider  models.Provider `json:"provider"`
	CreatedAt time.Time       `json:"created_at"`
}

// oauthProvider is one configured OAuth client.
type oauthProvider struct {
	config      *oauth2.Config
	userInfoURL string
	normalize   func(data []byte) (*models.UserProfile, error)
}

// GoogleUserInfo is the response of Google's v2 userinfo endpoint.
//
// JSON response example:
//
//	{
//	  "id": "1234567890",
//	  "email": "user@example.com",
//	  "name": "Ana Paz",
//	  "given_name": "Ana",
//	  "family_name": "Paz",
//	  "picture": "https://lh3.googleusercontent.com/..."
//	}
type GoogleUserInfo struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// FacebookUserInfo is the Graph API /me response with
// fields=id,name,email,picture.
type FacebookUserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// OAuthService runs the authorization code flow for Google and Facebook.
// Providers without client credentials are not registered.
//
// State values are random, stored in Redis for StateTTL, bound to the
// provider that issued them and consumed on first use.
type OAuthService struct {
	providers map[models.Provider]*oauthProvider
	states    StateCache
	stateTTL  time.Duration
}

// NewOAuthService builds OAuth clients for every enabled provider.
//
// Parameters:
//   - cfg: Client credentials, userinfo URLs and the callback base URL
//   - states: Cache for state values (typically pkg/cache backed by Redis)
//
// Example:
//
//	oauthSvc := services.NewOAuthService(&cfg.OAuth, cache.NewCache(redisDB.Client()))
//	for _, p := range oauthSvc.Providers() {
//	    authSvc.Register(p, oauthSvc.Authenticator(p))
//	}
func NewOAuthService(cfg *config.OAuthConfig, states StateCache) *OAuthService {
	s := &OAuthService{
		providers: make(map[models.Provider]*oauthProvider),
		states:    states,
		stateTTL:  cfg.StateTTL,
	}

	base := strings.TrimRight(cfg.RedirectBaseURL, "/")

	if cfg.Google.Enabled() {
		s.providers[models.ProviderGoogle] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				RedirectURL:  callbackURL(base, models.ProviderGoogle),
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.profile",
					"https://www.googleapis.com/auth/userinfo.email",
				},
				Endpoint: google.Endpoint,
			},
			userInfoURL: cfg.Google.UserInfoURL,
			normalize:   normalizeGoogle,
		}
	}

	if cfg.Facebook.Enabled() {
		s.providers[models.ProviderFacebook] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.Facebook.ClientID,
				ClientSecret: cfg.Facebook.ClientSecret,
				RedirectURL:  callbackURL(base, models.ProviderFacebook),
				Scopes:       []string{"email", "public_profile"},
				Endpoint:     facebook.Endpoint,
			},
			userInfoURL: cfg.Facebook.UserInfoURL,
			normalize:   normalizeFacebook,
		}
	}

	return s
}

func callbackURL(base string, provider models.Provider) string {
	return fmt.Sprintf("%s/api/v1/auth/%s/callback", base, provider)
}

// Providers lists the enabled providers in a stable order.
func (s *OAuthService) Providers() []models.Provider {
	var out []models.Provider
	for _, p := range []models.Provider{models.ProviderGoogle, models.ProviderFacebook} {
		if _, ok := s.providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// AuthURL issues a state value for provider and returns the consent page
// URL to redirect the user to.
//
// Returns ErrProviderDisabled for an unconfigured provider.
func (s *OAuthService) AuthURL(ctx context.Context, provider models.Provider) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrProviderDisabled
	}

	state := GenerateState()
	record := oauthState{Provider: provider, CreatedAt: time.Now()}
	if err := s.states.Set(ctx, cache.OAuthStateKey(state), record, s.stateTTL); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}

	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange validates state, trades code for a token and loads the
// provider profile. Every failure is an *OAuthError.
func (s *OAuthService) Exchange(ctx context.Context, provider models.Provider, code, state string) (*models.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, &OAuthError{Provider: provider, Message: "provider not enabled", Err: ErrProviderDisabled}
	}

	if err := s.consumeState(ctx, provider, state); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, &OAuthError{Provider: provider, Message: "missing authorization code"}
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("provider", provider.String()).Msg("Failed to exchange authorization code")
		return nil, &OAuthError{Provider: provider, Message: "failed to exchange code", Err: err}
	}

	profile, err := s.fetchProfile(ctx, p, token)
	if err != nil {
		log.Error().Err(err).Str("provider", provider.String()).Msg("Failed to fetch user info")
		return nil, &OAuthError{Provider: provider, Message: "failed to get user info", Err: err}
	}
	profile.AppMetadata = &models.AppMetadata{Provider: provider.String()}

	return &models.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		User:         profile,
		Provider:     provider,
	}, nil
}

func (s *OAuthService) consumeState(ctx context.Context, provider models.Provider, state string) error {
	if state == "" {
		return &OAuthError{Provider: provider, Message: "missing state", Err: ErrInvalidState}
	}

	var record oauthState
	err := s.states.Take(ctx, cache.OAuthStateKey(state), &record)
	if errors.Is(err, cache.ErrCacheMiss) {
		return &OAuthError{Provider: provider, Message: "unknown or expired state", Err: ErrInvalidState}
	}
	if err != nil {
		return &OAuthError{Provider: provider, Message: "failed to read state", Err: err}
	}
	if record.Provider != provider {
		return &OAuthError{Provider: provider, Message: "state issued for " + record.Provider.String(), Err: ErrInvalidState}
	}
	return nil
}

func (s *OAuthService) fetchProfile(ctx context.Context, p *oauthProvider, token *oauth2.Token) (*models.UserProfile, error) {
	client := p.config.Client(ctx, token)

	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return p.normalize(raw)
}

func normalizeGoogle(data []byte) (*models.UserProfile, error) {
	var info GoogleUserInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &models.UserProfile{
		ID:        models.ID(info.ID),
		Email:     info.Email,
		Name:      info.Name,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
		UserMetadata: &models.UserMetadata{
			FullName:  info.Name,
			AvatarURL: info.Picture,
		},
	}, nil
}

func normalizeFacebook(data []byte) (*models.UserProfile, error) {
	var info FacebookUserInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	first, last, _ := strings.Cut(info.Name, " ")
	return &models.UserProfile{
		ID:        models.ID(info.ID),
		Email:     info.Email,
		Name:      info.Name,
		FirstName: first,
		LastName:  last,
		UserMetadata: &models.UserMetadata{
			FullName:  info.Name,
			AvatarURL: info.Picture.Data.URL,
		},
	}, nil
}

// OAuthAuthenticator adapts one provider of an OAuthService to the
// Authenticator interface.
type OAuthAuthenticator struct {
	service  *OAuthService
	provider models.Provider
}

// Authenticator returns the Authenticator for provider.
func (s *OAuthService) Authenticator(provider models.Provider) *OAuthAuthenticator {
	return &OAuthAuthenticator{service: s, provider: provider}
}

// Authenticate implements Authenticator. The store is not touched; the
// session is only written by AuthService once the exchange succeeded.
func (a *OAuthAuthenticator) Authenticate(ctx context.Context, _ session.Store, creds Credentials) (*models.Session, error) {
	return a.service.Exchange(ctx, a.provider, creds.Code, creds.State)
}
