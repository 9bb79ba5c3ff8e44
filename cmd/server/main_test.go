package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/testutil"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, backendURL string) http.Handler {
	t.Helper()

	mr := testutil.SetupMiniRedis(t)
	redisDB := testutil.NewTestRedisDB(t, mr)

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "8080", Environment: "test", FrontendURL: "http://localhost:3000"},
		Backend: config.BackendConfig{APIURL: backendURL, DemoURL: backendURL, DemoUserID: "luis", Timeout: 5 * time.Second},
		Identity: config.IdentityConfig{
			TokenURL:  backendURL + "/api/token/",
			VerifyURL: backendURL + "/api/auth/verify",
		},
		OAuth:     config.OAuthConfig{RedirectBaseURL: "http://localhost:8080", StateTTL: 10 * time.Minute},
		Session:   config.SessionConfig{CookieName: "ctx_id", TTL: time.Hour},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 100, WindowDuration: time.Minute},
	}
	return newRouter(cfg, redisDB)
}

func TestRouter(t *testing.T) {
	backend := testutil.NewBackendRecorder(t, `{"respuesta":"Hola","chat_id":"c-1"}`)
	router := setupRouter(t, backend.URL)

	t.Run("chat without authorization is 401", func(t *testing.T) {
		for _, path := range []string{"/api/chat", "/api/chat/"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"message":"hi"}`)))
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
			assert.JSONEq(t, `{"error":"Missing authorization header"}`, rec.Body.String())
		}
		assert.Zero(t, backend.Calls)
	})

	t.Run("chat is proxied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat/", strings.NewReader(`{"message":"hi","chat_id":null}`))
		req.Header.Set("Authorization", "Bearer A")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"response":"Hola"`)
		assert.Equal(t, "/chat/", backend.LastPath)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("history without authorization is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat/history/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("probes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/chat/history/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled oauth provider is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("chat view redirects anonymous visitor", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chat/view", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "http://localhost:3000/auth", rec.Header().Get("Location"))
		assert.NotNil(t, testutil.FindCookie(rec, "ctx_id"))
	})

	t.Run("browser context can be inspected and forgotten", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/context", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		cookie := testutil.FindCookie(rec, "ctx_id")
		require.NotNil(t, cookie)
		assert.Contains(t, rec.Body.String(), cookie.Value)

		req = httptest.NewRequest(http.MethodDelete, "/api/v1/context", nil)
		testutil.SetCookie(req, "ctx_id", cookie.Value)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		cleared := testutil.FindCookie(rec, "ctx_id")
		require.NotNil(t, cleared)
		assert.Equal(t, -1, cleared.MaxAge)
	})

	t.Run("health and metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "upstream_requests_total")
	})
}

// identityBackend serves the local token and verify endpoints and the chat
// API from one server, the way the university deployment does.
type identityBackend struct {
	*httptest.Server

	mu         sync.Mutex
	chatStatus int
	lastAuth   string
	lastBody   string
}

func newIdentityBackend(t *testing.T) *identityBackend {
	t.Helper()

	b := &identityBackend{chatStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "ana" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"No active account found with the given credentials"}`)
			return
		}
		io.WriteString(w, `{"access":"A","refresh":"B"}`)
	})
	mux.HandleFunc("/api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"id":1,"email":"x@y.com","first_name":"Ana","last_name":"Paz"}`)
	})
	mux.HandleFunc("/chat/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.lastAuth = r.Header.Get("Authorization")
		b.lastBody = string(body)
		status := b.chatStatus
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			io.WriteString(w, `{"respuesta":"Hola Ana","chat_id":"c-7"}`)
			return
		}
		io.WriteString(w, `{"detail":"Token is invalid or expired"}`)
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)

	return b
}

func (b *identityBackend) setChatStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatStatus = status
}

func (b *identityBackend) last() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAuth, b.lastBody
}

func TestBrowserSessionChat(t *testing.T) {
	backend := newIdentityBackend(t)
	router := setupRouter(t, backend.URL)

	serve := func(method, target, body, contextID string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set("Content-Type", "application/json")
		if contextID != "" {
			testutil.SetCookie(req, "ctx_id", contextID)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodPost, "/api/v1/auth/login", `{"username":"ana","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := testutil.FindCookie(rec, "ctx_id")
	require.NotNil(t, cookie)
	contextID := cookie.Value

	t.Run("cookie alone authorizes chat", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/chat/", `{"message":"hola","provider":"local","chat_id":null,"userId":"ana"}`, contextID)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"response":"Hola Ana"`)
		assert.Contains(t, rec.Body.String(), `"chat_id":"c-7"`)

		auth, body := backend.last()
		assert.Equal(t, "Bearer A", auth)
		assert.JSONEq(t, `{"message":"hola","provider":"local","chat_id":null,"userId":"ana"}`, body)
	})

	t.Run("unknown cookie without header is 401", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/chat/", `{"message":"hola"}`, "6f1c2a8e-0d5b-4c3e-9a7f-2b8d4e6f1a3c")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Missing authorization header"}`, rec.Body.String())
	})

	t.Run("backend 403 ends the browser session", func(t *testing.T) {
		backend.setChatStatus(http.StatusForbidden)

		rec := serve(http.MethodPost, "/api/chat/", `{"message":"hola"}`, contextID)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = serve(http.MethodGet, "/api/v1/auth/me", "", contextID)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "http://localhost:3000/auth", rec.Header().Get("Location"))

		rec = serve(http.MethodPost, "/api/chat/", `{"message":"hola"}`, contextID)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestForeignTokenKeepsBrowserSession(t *testing.T) {
	backend := newIdentityBackend(t)
	router := setupRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"ana","password":"secret"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := testutil.FindCookie(rec, "ctx_id")
	require.NotNil(t, cookie)

	backend.setChatStatus(http.StatusUnauthorized)
	req = httptest.NewRequest(http.MethodPost, "/api/chat/", strings.NewReader(`{"message":"hola"}`))
	testutil.SetAuthHeader(req, "someone-else")
	testutil.SetCookie(req, "ctx_id", cookie.Value)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth, _ := backend.last()
	assert.Equal(t, "Bearer someone-else", auth)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	testutil.SetCookie(req, "ctx_id", cookie.Value)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
