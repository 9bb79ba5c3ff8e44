package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/internal/testutil"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBrowserContext(t *testing.T) (*BrowserContext, *miniredis.Miniredis) {
	t.Helper()

	mr := testutil.SetupMiniRedis(t)
	db := testutil.NewTestRedisDB(t, mr)
	return NewBrowserContext(db, &config.SessionConfig{CookieName: "ctx_id", TTL: time.Hour}, false), mr
}

func TestBrowserContext(t *testing.T) {
	t.Run("creates context and records device", func(t *testing.T) {
		bc, mr := setupBrowserContext(t)

		var store session.Store
		handler := bc.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ok bool
			store, ok = GetStore(r.Context())
			require.True(t, ok)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("User-Agent", testutil.UserAgents.Chrome)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		cookie := testutil.FindCookie(rec, "ctx_id")
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.Len(t, cookie.Value, 36)

		redisStore, ok := store.(*session.RedisStore)
		require.True(t, ok)
		assert.Equal(t, cookie.Value, redisStore.ContextID())
		assert.Contains(t, mr.HGet("browser_ctx_info:"+cookie.Value, "device_info"), "Chrome")
	})

	t.Run("reuses existing context", func(t *testing.T) {
		bc, mr := setupBrowserContext(t)
		id := "6f1c2a8e-4d0b-4f7a-9c35-2e1b8f0d7a11"
		mr.HSet("browser_ctx:"+id, "accessToken", "A")

		var token string
		handler := bc.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, _ := GetStore(r.Context())
			token, _, _ = store.Get(r.Context(), session.KeyAccessToken)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		testutil.SetCookie(req, "ctx_id", id)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "A", token)
		assert.Nil(t, testutil.FindCookie(rec, "ctx_id"))
		assert.Equal(t, time.Hour, mr.TTL("browser_ctx:"+id))
	})

	t.Run("replaces malformed cookie", func(t *testing.T) {
		bc, _ := setupBrowserContext(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		testutil.SetCookie(req, "ctx_id", "../../etc")
		rec := httptest.NewRecorder()
		bc.Middleware()(okHandler()).ServeHTTP(rec, req)

		cookie := testutil.FindCookie(rec, "ctx_id")
		require.NotNil(t, cookie)
		assert.NotEqual(t, "../../etc", cookie.Value)
	})
}

func TestBrowserContextAttach(t *testing.T) {
	t.Run("binds known context", func(t *testing.T) {
		bc, mr := setupBrowserContext(t)
		id := "6f1c2a8e-4d0b-4f7a-9c35-2e1b8f0d7a11"
		mr.HSet("browser_ctx:"+id, "accessToken", "A")

		var token string
		handler := bc.Attach()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, ok := GetStore(r.Context())
			require.True(t, ok)
			token, _, _ = store.Get(r.Context(), session.KeyAccessToken)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/chat/", nil)
		testutil.SetCookie(req, "ctx_id", id)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "A", token)
		assert.Equal(t, time.Hour, mr.TTL("browser_ctx:"+id))
	})

	t.Run("never creates a context", func(t *testing.T) {
		bc, mr := setupBrowserContext(t)

		attached := true
		handler := bc.Attach()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, attached = GetStore(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat/", nil))

		assert.False(t, attached)
		assert.Nil(t, testutil.FindCookie(rec, "ctx_id"))
		assert.Empty(t, mr.Keys())
	})
}

func TestRequireSession(t *testing.T) {
	protected := func(t *testing.T) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSession(r.Context())
			require.True(t, ok)
			w.Write([]byte(sess.AccessToken))
		})
	}

	t.Run("redirects to auth without session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/view", nil)
		req = req.WithContext(WithStore(req.Context(), session.NewMemoryStore()))
		rec := httptest.NewRecorder()

		RequireSession("http://localhost:3000")(protected(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "http://localhost:3000/auth", rec.Header().Get("Location"))
	})

	t.Run("passes session through", func(t *testing.T) {
		store := session.NewMemoryStore()
		require.NoError(t, session.Save(context.Background(), store, testutil.TestSession()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/view", nil)
		req = req.WithContext(WithStore(req.Context(), store))
		rec := httptest.NewRecorder()

		RequireSession("")(protected(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "A", rec.Body.String())
	})

	t.Run("clears locally expired token", func(t *testing.T) {
		store := session.NewMemoryStore()
		sess := testutil.TestSession()
		sess.AccessToken = testutil.ExpiringJWT(time.Now().Add(-time.Hour))
		require.NoError(t, session.Save(context.Background(), store, sess))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/view", nil)
		req = req.WithContext(WithStore(req.Context(), store))
		rec := httptest.NewRecorder()

		RequireSession("")(protected(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth", rec.Header().Get("Location"))
		assert.NotContains(t, store.Snapshot(), session.KeyAccessToken)
	})

	t.Run("fails without browser context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireSession("")(protected(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRedirectNavigator(t *testing.T) {
	rec := httptest.NewRecorder()
	nav := NewRedirectNavigator(rec, httptest.NewRequest(http.MethodGet, "/", nil), "https://chat.example.com/")

	nav.Replace(session.PathChat)
	nav.Push(session.PathAuth)

	assert.Equal(t, session.PathChat, nav.Target())
	assert.Equal(t, "https://chat.example.com/chat", rec.Header().Get("Location"))
}
