package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ieraasyl/ChatGateway/internal/database"
	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	storeKey   contextKey = "session_store"
	sessionKey contextKey = "session"
)

// ContextBackend stores browser contexts. Implemented by *database.RedisDB.
type ContextBackend interface {
	session.ContextBackend
	SetContextInfo(ctx context.Context, contextID string, info database.ContextInfo, ttl time.Duration) error
	TouchContext(ctx context.Context, contextID string, ttl time.Duration) error
}

// BrowserContext gives every visitor a server-side key/value store, the
// gateway's counterpart of browser local storage. The store is identified
// by an HttpOnly cookie holding a random UUID and lives in Redis with a
// sliding TTL.
type BrowserContext struct {
	backend    ContextBackend
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewBrowserContext creates the middleware factory.
//
// Example:
//
//	browserCtx := middleware.NewBrowserContext(redisDB, &cfg.Session, cfg.Server.IsProduction())
//	r.Use(browserCtx.Middleware())
func NewBrowserContext(backend ContextBackend, cfg *config.SessionConfig, secure bool) *BrowserContext {
	return &BrowserContext{
		backend:    backend,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     secure,
	}
}

// Middleware attaches the visitor's store to the request context. A
// missing or malformed cookie starts a new context, records the device that
// opened it and sets the cookie. A known cookie only extends the TTL.
func (b *BrowserContext) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contextID := b.contextID(r)

			if contextID == "" {
				contextID = uuid.New().String()
				info := database.ContextInfo{
					DeviceInfo: services.ExtractDeviceInfo(r.UserAgent()),
					IPAddress:  utils.ExtractClientIP(r),
					CreatedAt:  time.Now(),
				}
				if err := b.backend.SetContextInfo(r.Context(), contextID, info, b.ttl); err != nil {
					log.Error().Err(err).Msg("Failed to record browser context")
				} else {
					log.Debug().
						Str("context_id", contextID).
						Str("device", info.DeviceInfo).
						Msg("Browser context created")
				}
				utils.SetAuthCookie(w, b.cookieName, contextID, time.Now().Add(b.ttl), b.secure)
			} else if err := b.backend.TouchContext(r.Context(), contextID, b.ttl); err != nil {
				log.Warn().Err(err).Str("context_id", contextID).Msg("Failed to refresh browser context")
			}

			store := session.NewRedisStore(b.backend, contextID, b.ttl)
			ctx := context.WithValue(r.Context(), storeKey, session.Store(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Attach binds the store of an existing browser context and never creates
// one. Used on the proxy routes, where API clients send a bearer header and
// have no cookie.
func (b *BrowserContext) Attach() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contextID := b.contextID(r)
			if contextID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := b.backend.TouchContext(r.Context(), contextID, b.ttl); err != nil {
				log.Warn().Err(err).Str("context_id", contextID).Msg("Failed to refresh browser context")
			}
			store := session.NewRedisStore(b.backend, contextID, b.ttl)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), storeKey, session.Store(store))))
		})
	}
}

func (b *BrowserContext) contextID(r *http.Request) string {
	cookie, err := r.Cookie(b.cookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

// GetStore returns the store attached by BrowserContext.
//
// Example:
//
//	store, ok := middleware.GetStore(r.Context())
//	if !ok {
//	    utils.RespondWithError(w, r, http.StatusInternalServerError, "No browser context")
//	    return
//	}
func GetStore(ctx context.Context) (session.Store, bool) {
	store, ok := ctx.Value(storeKey).(session.Store)
	return store, ok
}

// WithStore returns a context carrying store. Used by tests and by callers
// that bypass BrowserContext.
func WithStore(ctx context.Context, store session.Store) context.Context {
	return context.WithValue(ctx, storeKey, store)
}

// GetSession returns the session attached by RequireSession.
func GetSession(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*models.Session)
	return s, ok
}

// RedirectNavigator answers the current request with a 303 redirect to the
// front-end. Only the first navigation is written.
type RedirectNavigator struct {
	w       http.ResponseWriter
	r       *http.Request
	baseURL string
	target  string
}

// NewRedirectNavigator creates a navigator for one request. baseURL is the
// front-end origin; an empty base redirects on this host.
func NewRedirectNavigator(w http.ResponseWriter, r *http.Request, baseURL string) *RedirectNavigator {
	return &RedirectNavigator{w: w, r: r, baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *RedirectNavigator) Push(path string) {
	n.redirect(path)
}

func (n *RedirectNavigator) Replace(path string) {
	n.redirect(path)
}

// Target returns the path navigated to, or "" when none.
func (n *RedirectNavigator) Target() string {
	return n.target
}

func (n *RedirectNavigator) redirect(path string) {
	if n.target != "" {
		return
	}
	n.target = path
	http.Redirect(n.w, n.r, n.baseURL+path, http.StatusSeeOther)
}

// discardNavigator ignores navigation. The browser redirects itself when it
// sees the 401 or 403.
type discardNavigator struct{}

func (discardNavigator) Push(string)    {}
func (discardNavigator) Replace(string) {}

// EndRejectedSession clears the browser-context session after the backend
// answered 401 or 403 to a call made with that session's access token.
// A call made with some other token leaves the context alone. Returns true
// when the session was cleared.
//
// Example:
//
//	if middleware.EndRejectedSession(r, backendErr.Status, r.Header.Get("Authorization")) {
//	    log.Info().Msg("Browser session ended by backend")
//	}
func EndRejectedSession(r *http.Request, status int, authorization string) bool {
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return false
	}
	store, ok := GetStore(r.Context())
	if !ok {
		return false
	}

	token, ok, err := store.Get(r.Context(), session.KeyAccessToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read session token")
		return false
	}
	if !ok || token == "" || token != utils.BearerToken(authorization) {
		return false
	}

	guard := session.NewGuard(store, discardNavigator{}, ExpiryNotifier{}, 0)
	return guard.OnResponse(r.Context(), status)
}

// ExpiryNotifier logs and counts expired sessions.
type ExpiryNotifier struct{}

func (ExpiryNotifier) SessionExpired() {
	IncrementSessionExpirations()
	log.Info().Msg("Session expired, redirecting to login")
}

// RequireSession guards front-end views. Without a session, or with a
// locally expired token, the visitor is redirected (303) to the front-end's
// /auth page. Otherwise the session is available through GetSession.
//
// Must run after BrowserContext.Middleware.
func RequireSession(frontendURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, ok := GetStore(r.Context())
			if !ok {
				log.Error().Str("path", r.URL.Path).Msg("RequireSession used without browser context")
				utils.RespondWithError(w, r, http.StatusInternalServerError, "Session storage unavailable")
				return
			}

			nav := NewRedirectNavigator(w, r, frontendURL)
			guard := session.NewGuard(store, nav, ExpiryNotifier{}, 0)

			sess, err := guard.RequireSession(r.Context())
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrSessionExpired) {
					log.Error().Err(err).Msg("Failed to load session")
					utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load session")
				}
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
