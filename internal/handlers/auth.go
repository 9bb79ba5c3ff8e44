package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/ieraasyl/ChatGateway/internal/middleware"
	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Authenticator runs logins and logouts against the visitor's store.
// Implemented by *services.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, store session.Store, nav session.Navigator, provider models.Provider, creds services.Credentials) (*models.Session, error)
	Enabled(provider models.Provider) bool
	Logout(ctx context.Context, store session.Store) error
}

// OAuthStarter builds provider consent URLs. Implemented by *services.OAuthService.
type OAuthStarter interface {
	AuthURL(ctx context.Context, provider models.Provider) (string, error)
}

// AuthHandler handles the login flows for the three identity providers.
type AuthHandler struct {
	auth        Authenticator
	oauth       OAuthStarter
	frontendURL string
}

// NewAuthHandler creates an auth handler.
//
// Parameters:
//   - auth: Login dispatcher with every enabled provider registered
//   - oauth: Consent URL builder for Google and Facebook (may be nil when neither is configured)
//   - frontendURL: Base URL the OAuth callback redirects back to
//
// Example:
//
//	authHandler := handlers.NewAuthHandler(authService, oauthService, cfg.Server.FrontendURL)
//	r.Post("/api/v1/auth/login", authHandler.Login)
func NewAuthHandler(auth Authenticator, oauth OAuthStarter, frontendURL string) *AuthHandler {
	return &AuthHandler{auth: auth, oauth: oauth, frontendURL: frontendURL}
}

// LoginRequest is the body of a local login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse tells the client where to go after a successful login.
//
// JSON example:
//
//	{
//	  "redirect": "/chat",
//	  "provider": "local",
//	  "profile": {"display_name": "Ana Paz", "first_name": "Ana", "email": "x@y.com", "provider": "local"}
//	}
type LoginResponse struct {
	Redirect string                `json:"redirect"`
	Provider models.Provider       `json:"provider"`
	Profile  models.ProfileSummary `json:"profile"`
}

// MeResponse describes the current session.
type MeResponse struct {
	Provider models.Provider       `json:"provider"`
	Profile  models.ProfileSummary `json:"profile"`
}

// viewNavigator records the navigation a login asked for so it can be
// returned to a JSON client instead of redirecting.
type viewNavigator struct {
	target string
}

func (n *viewNavigator) Push(path string)    { n.target = path }
func (n *viewNavigator) Replace(path string) { n.target = path }

// Login exchanges university credentials for a session.
//
// @Summary      Local login
// @Description  Exchanges username and password for tokens, verifies them and stores the session in the browser context
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Credentials"
// @Success      200      {object}  LoginResponse
// @Failure      400      {object}  utils.ErrorResponse  "Invalid request body"
// @Failure      401      {object}  utils.ErrorResponse  "Invalid credentials or verification failed"
// @Failure      429      {object}  utils.ErrorResponse  "Too many requests"
// @Router       /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	store, ok := middleware.GetStore(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Session storage unavailable")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	nav := &viewNavigator{}
	sess, err := h.auth.Authenticate(r.Context(), store, nav, models.ProviderLocal, services.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		middleware.IncrementAuthAttempts(models.ProviderLocal.String(), "failure")
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			// CredentialsError renders the identity endpoint's detail message.
			utils.RespondWithError(w, r, http.StatusUnauthorized, err.Error())
		case errors.Is(err, services.ErrVerificationFailed):
			utils.RespondWithError(w, r, http.StatusUnauthorized, services.ErrVerificationFailed.Error())
		case errors.Is(err, services.ErrProviderDisabled):
			utils.RespondWithError(w, r, http.StatusNotFound, "Provider not available")
		default:
			log.Error().Err(err).Str("request_id", utils.GetRequestID(r.Context())).Msg("Local login failed")
			utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to log in")
		}
		return
	}

	middleware.IncrementAuthAttempts(models.ProviderLocal.String(), "success")
	utils.RespondWithJSON(w, r, http.StatusOK, LoginResponse{
		Redirect: nav.target,
		Provider: sess.Provider,
		Profile:  models.NewUserProfileView(sess.User, sess.Provider).Summary(),
	})
}

// OAuthLogin redirects the browser to the provider's consent page.
//
// @Summary      Start OAuth login
// @Description  Redirects to Google or Facebook. Disabled or unknown providers return 404.
// @Tags         auth
// @Param        provider  path  string  true  "google or facebook"
// @Success      307  "Redirect to provider consent page"
// @Failure      404  {object}  utils.ErrorResponse  "Provider not available"
// @Failure      500  {object}  utils.ErrorResponse  "Failed to start login"
// @Router       /api/v1/auth/{provider}/login [get]
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.oauthProvider(r)
	if !ok {
		utils.RespondWithError(w, r, http.StatusNotFound, "Provider not available")
		return
	}

	authURL, err := h.oauth.AuthURL(r.Context(), provider)
	if err != nil {
		if errors.Is(err, services.ErrProviderDisabled) {
			utils.RespondWithError(w, r, http.StatusNotFound, "Provider not available")
			return
		}
		log.Error().Err(err).Str("provider", provider.String()).Msg("Failed to build consent URL")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to start login")
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// OAuthCallback completes an OAuth login and sends the browser to /chat.
// Any failure sends it back to /auth?error=oauth_failed.
//
// @Summary      OAuth callback
// @Tags         auth
// @Param        provider  path   string  true  "google or facebook"
// @Param        code      query  string  true  "Authorization code"
// @Param        state     query  string  true  "CSRF state"
// @Success      303  "Redirect to the chat view"
// @Router       /api/v1/auth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.oauthProvider(r)
	if !ok {
		utils.RespondWithError(w, r, http.StatusNotFound, "Provider not available")
		return
	}

	store, ok := middleware.GetStore(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Session storage unavailable")
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		log.Warn().Str("provider", provider.String()).Str("error", providerErr).Msg("Provider denied consent")
		middleware.IncrementAuthAttempts(provider.String(), "denied")
		h.redirectFailure(w, r)
		return
	}

	nav := middleware.NewRedirectNavigator(w, r, h.frontendURL)
	_, err := h.auth.Authenticate(r.Context(), store, nav, provider, services.Credentials{
		Code:  query.Get("code"),
		State: query.Get("state"),
	})
	if err != nil {
		log.Warn().Err(err).Str("provider", provider.String()).Msg("OAuth login failed")
		middleware.IncrementAuthAttempts(provider.String(), "failure")
		h.redirectFailure(w, r)
		return
	}

	middleware.IncrementAuthAttempts(provider.String(), "success")
	if nav.Target() == "" {
		http.Redirect(w, r, h.frontendURL+session.PathChat, http.StatusSeeOther)
	}
}

// Logout removes the session keys from the browser context. The theme
// preference survives.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string  "Logged out"
// @Router       /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	store, ok := middleware.GetStore(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Session storage unavailable")
		return
	}

	if err := h.auth.Logout(r.Context(), store); err != nil {
		log.Error().Err(err).Msg("Failed to clear session")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to log out")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"message":  "Logged out",
		"redirect": session.PathAuth,
	})
}

// Me returns the signed-in user. Must run behind middleware.RequireSession.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  MeResponse
// @Failure      303  "Redirect to /auth when not signed in"
// @Router       /api/v1/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, MeResponse{
		Provider: sess.Provider,
		Profile:  models.NewUserProfileView(sess.User, sess.Provider).Summary(),
	})
}

func (h *AuthHandler) oauthProvider(r *http.Request) (models.Provider, bool) {
	provider, ok := models.LookupProvider(chi.URLParam(r, "provider"))
	if !ok || !provider.IsOAuth() || h.oauth == nil {
		return "", false
	}
	return provider, h.auth.Enabled(provider)
}

func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request) {
	target := h.frontendURL + session.PathAuth + "?" + url.Values{"error": {"oauth_failed"}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}
