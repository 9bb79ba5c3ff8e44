package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/rs/zerolog/log"
)

// tokenRequest is the body of the identity token endpoint.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is a successful token endpoint reply.
type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// detailResponse is the error body of the token endpoint.
type detailResponse struct {
	Detail string `json:"detail"`
}

// LocalAuthenticator logs in with university credentials. It exchanges the
// username and password for an access/refresh pair, writes both to the
// store and then verifies the access token to obtain the profile.
//
// If verification fails every key written so far is removed again, so a
// failed login never leaves a half-authenticated store behind.
type LocalAuthenticator struct {
	httpClient *http.Client
	tokenURL   string
	verifyURL  string
}

// NewLocalAuthenticator creates an authenticator for the configured identity
// endpoints.
//
// Example:
//
//	local := services.NewLocalAuthenticator(&cfg.Identity, 15*time.Second)
//	authSvc.Register(models.ProviderLocal, local)
func NewLocalAuthenticator(cfg *config.IdentityConfig, timeout time.Duration) *LocalAuthenticator {
	return &LocalAuthenticator{
		httpClient: &http.Client{Timeout: timeout},
		tokenURL:   cfg.TokenURL,
		verifyURL:  cfg.VerifyURL,
	}
}

// Authenticate implements Authenticator.
//
// Returns a *CredentialsError (matching ErrInvalidCredentials) when the
// token endpoint refuses, and ErrVerificationFailed when the verify call
// fails. The returned session is not yet saved as a whole; AuthService does
// that.
func (a *LocalAuthenticator) Authenticate(ctx context.Context, store session.Store, creds Credentials) (*models.Session, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return nil, &CredentialsError{}
	}

	tokens, err := a.requestTokens(ctx, username, creds.Password)
	if err != nil {
		return nil, err
	}

	if err := store.Set(ctx, session.KeyAccessToken, tokens.Access); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}
	if err := store.Set(ctx, session.KeyRefreshToken, tokens.Refresh); err != nil {
		a.rollback(ctx, store)
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	profile, err := a.verify(ctx, tokens.Access)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Token verification failed")
		a.rollback(ctx, store)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	return &models.Session{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		User:         profile,
		Provider:     models.ProviderLocal,
	}, nil
}

func (a *LocalAuthenticator) requestTokens(ctx context.Context, username, password string) (*tokenResponse, error) {
	body, err := json.Marshal(tokenRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reach token endpoint")
		return nil, &CredentialsError{}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var detail detailResponse
		_ = json.Unmarshal(data, &detail)
		log.Info().Int("status", resp.StatusCode).Str("username", username).Msg("Token endpoint rejected credentials")
		return nil, &CredentialsError{Detail: detail.Detail}
	}

	var tokens tokenResponse
	if err := json.Unmarshal(data, &tokens); err != nil || tokens.Access == "" {
		log.Error().Err(err).Msg("Token endpoint returned no access token")
		return nil, &CredentialsError{}
	}
	return &tokens, nil
}

func (a *LocalAuthenticator) verify(ctx context.Context, accessToken string) (*models.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.verifyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "verify token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("verify endpoint returned status %d", resp.StatusCode)
	}

	var profile models.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

func (a *LocalAuthenticator) rollback(ctx context.Context, store session.Store) {
	if err := store.Delete(ctx, session.KeyAccessToken, session.KeyRefreshToken, session.KeyUserData); err != nil {
		log.Error().Err(err).Msg("Failed to roll back partial login")
	}
}
