package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/middleware"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/internal/testutil"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProxy(t *testing.T, body string) (*ProxyHandler, *testutil.BackendRecorder) {
	t.Helper()

	backend := testutil.NewBackendRecorder(t, body)
	client := services.NewBackendClient(&config.BackendConfig{
		APIURL:     backend.URL + "/api",
		DemoURL:    backend.URL,
		DemoUserID: "luis",
		Timeout:    5 * time.Second,
	})
	client.HistoryRetry = utils.NoRetryConfig()

	handler := NewProxyHandler(client)
	handler.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return handler, backend
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestProxyChat(t *testing.T) {
	t.Run("forwards message and normalizes reply", func(t *testing.T) {
		handler, backend := setupProxy(t, `{"respuesta":"Hola","chat_id":"c-91"}`)
		token := testutil.UnsignedJWT(map[string]interface{}{"user_id": 42})

		req := postJSON("/api/chat/", `{"message":"hi","provider":"local","chat_id":null}`)
		testutil.SetAuthHeader(req, token)
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/api/chat/", backend.LastPath)
		assert.Equal(t, http.MethodPost, backend.LastMethod)
		assert.Equal(t, "Bearer "+token, backend.LastAuth)
		assert.JSONEq(t, `{"message":"hi","provider":"local","chat_id":null}`, string(backend.LastBody))

		assert.JSONEq(t, `{
			"response": "Hola",
			"chat_id": "c-91",
			"metadata": {"timestamp": "2025-03-01T10:00:00Z", "user_id": "42"}
		}`, rec.Body.String())
	})

	t.Run("copies backend error field", func(t *testing.T) {
		handler, _ := setupProxy(t, `{"error":"sin datos"}`)

		req := postJSON("/api/chat/", `{"message":"hi"}`)
		testutil.SetAuthHeader(req, "opaque")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"error": "sin datos",
			"metadata": {"timestamp": "2025-03-01T10:00:00Z"}
		}`, rec.Body.String())
	})

	t.Run("relays backend status with text details", func(t *testing.T) {
		handler, backend := setupProxy(t, "upstream exploded")
		backend.Status = http.StatusServiceUnavailable

		req := postJSON("/api/chat/", `{"message":"hi"}`)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"error":"Backend error: 503","details":"upstream exploded"}`, rec.Body.String())
	})

	t.Run("backend 403 keeps its status", func(t *testing.T) {
		handler, backend := setupProxy(t, `{"detail":"token expired"}`)
		backend.Status = http.StatusForbidden

		req := postJSON("/api/chat/", `{"message":"hi"}`)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "Backend error: 403")
	})

	t.Run("empty chat id is dropped", func(t *testing.T) {
		handler, _ := setupProxy(t, `{"respuesta":"Hola","chat_id":""}`)

		req := postJSON("/api/chat/", `{"message":"hi","chat_id":null}`)
		testutil.SetAuthHeader(req, "opaque")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"response": "Hola",
			"metadata": {"timestamp": "2025-03-01T10:00:00Z"}
		}`, rec.Body.String())
	})

	t.Run("body is relayed with unknown fields", func(t *testing.T) {
		handler, backend := setupProxy(t, `{"respuesta":"Hola"}`)

		req := postJSON("/api/chat/", `{"message":"hi","userId":"ana","chat_id":"c-1"}`)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"hi","userId":"ana","chat_id":"c-1"}`, string(backend.LastBody))
	})

	t.Run("backend 403 ends the session that owns the token", func(t *testing.T) {
		handler, backend := setupProxy(t, `{"detail":"token expired"}`)
		backend.Status = http.StatusForbidden

		store := session.NewMemoryStore()
		require.NoError(t, session.Save(context.Background(), store, testutil.TestSession()))
		require.NoError(t, session.SetTheme(context.Background(), store, session.ThemeDark))

		req := postJSON("/api/chat/", `{"message":"hi"}`)
		rec := httptest.NewRecorder()
		middleware.RequireBearer()(http.HandlerFunc(handler.Chat)).ServeHTTP(rec, withStore(req, store))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Bearer A", backend.LastAuth)

		sess, err := session.Load(context.Background(), store)
		require.NoError(t, err)
		assert.False(t, sess.Authenticated())
		theme, err := session.Theme(context.Background(), store)
		require.NoError(t, err)
		assert.Equal(t, session.ThemeDark, theme)
	})

	t.Run("backend 401 to another token keeps the session", func(t *testing.T) {
		handler, backend := setupProxy(t, `{"detail":"bad token"}`)
		backend.Status = http.StatusUnauthorized

		store := session.NewMemoryStore()
		require.NoError(t, session.Save(context.Background(), store, testutil.TestSession()))

		req := postJSON("/api/chat/", `{"message":"hi"}`)
		testutil.SetAuthHeader(req, "other")
		rec := httptest.NewRecorder()
		handler.Chat(rec, withStore(req, store))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		sess, err := session.Load(context.Background(), store)
		require.NoError(t, err)
		assert.True(t, sess.Authenticated())
	})

	t.Run("unreachable backend is 500", func(t *testing.T) {
		handler, backend := setupProxy(t, "{}")
		backend.Close()

		req := postJSON("/api/chat/", `{"message":"hi"}`)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body utils.ProxyError
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "Proxy connection failed", body.Error)
		assert.NotEmpty(t, body.Details)
	})

	t.Run("non-JSON 2xx is 502", func(t *testing.T) {
		handler, _ := setupProxy(t, "<html>ok</html>")

		req := postJSON("/api/chat/", `{"message":"hi"}`)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid backend response"}`, rec.Body.String())
	})

	t.Run("invalid body is 400 without backend call", func(t *testing.T) {
		handler, backend := setupProxy(t, "{}")

		req := postJSON("/api/chat/", `{message`)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.Chat(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, backend.Calls)
	})

	t.Run("missing authorization rejected before proxying", func(t *testing.T) {
		handler, backend := setupProxy(t, "{}")

		rec := httptest.NewRecorder()
		middleware.RequireBearer()(http.HandlerFunc(handler.Chat)).ServeHTTP(rec, postJSON("/api/chat/", `{"message":"hi"}`))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Missing authorization header"}`, rec.Body.String())
		assert.Zero(t, backend.Calls)
	})
}

func TestProxyHistory(t *testing.T) {
	t.Run("relays body unchanged", func(t *testing.T) {
		items := `[{"id":7,"title":"Matrícula"},{"id":"c-2","title":"Horarios"}]`
		handler, backend := setupProxy(t, items)

		req := httptest.NewRequest(http.MethodGet, "/api/chat/history/", nil)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.History(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, items, rec.Body.String())
		assert.Equal(t, "/api/chat/history/", backend.LastPath)
		assert.Equal(t, http.MethodGet, backend.LastMethod)
		assert.Equal(t, "Bearer A", backend.LastAuth)
	})

	t.Run("missing authorization is 401", func(t *testing.T) {
		handler, backend := setupProxy(t, "[]")

		rec := httptest.NewRecorder()
		middleware.RequireBearer()(http.HandlerFunc(handler.History)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat/history/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Missing authorization header"}`, rec.Body.String())
		assert.Zero(t, backend.Calls)
	})

	t.Run("backend 401 relayed", func(t *testing.T) {
		handler, backend := setupProxy(t, "Unauthorized")
		backend.Status = http.StatusUnauthorized

		req := httptest.NewRequest(http.MethodGet, "/api/chat/history/", nil)
		testutil.SetAuthHeader(req, "A")
		rec := httptest.NewRecorder()
		handler.History(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Backend error: 401","details":"Unauthorized"}`, rec.Body.String())
	})
}

func TestProxyDemo(t *testing.T) {
	t.Run("defaults user and relays reply", func(t *testing.T) {
		handler, backend := setupProxy(t, `{"respuesta":"Bienvenido"}`)

		rec := httptest.NewRecorder()
		handler.Demo(rec, postJSON("/api/chat/demo", `{"message":"hola"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/ventas/chat", backend.LastPath)
		assert.Equal(t, "user_id=luis", backend.LastQuery)
		assert.Empty(t, backend.LastAuth)
		assert.JSONEq(t, `{"respuesta":"Bienvenido"}`, rec.Body.String())
	})

	t.Run("passes user_id query", func(t *testing.T) {
		handler, backend := setupProxy(t, `{}`)

		rec := httptest.NewRecorder()
		handler.Demo(rec, postJSON("/api/chat/demo?user_id=maria", `{"message":"hola"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user_id=maria", backend.LastQuery)
	})

	t.Run("backend failure becomes Railway error 500", func(t *testing.T) {
		handler, backend := setupProxy(t, "bad gateway")
		backend.Status = http.StatusBadGateway

		rec := httptest.NewRecorder()
		handler.Demo(rec, postJSON("/api/chat/demo", `{"message":"hola"}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Railway error: 502"}`, rec.Body.String())
	})

	t.Run("unreachable backend", func(t *testing.T) {
		handler, backend := setupProxy(t, "{}")
		backend.Close()

		rec := httptest.NewRecorder()
		handler.Demo(rec, postJSON("/api/chat/demo", `{"message":"hola"}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Proxy connection failed"}`, rec.Body.String())
	})
}

func TestProxyProbes(t *testing.T) {
	handler, backend := setupProxy(t, "{}")

	rec := httptest.NewRecorder()
	handler.ChatProbe(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

	var probe ProbeResponse
	testutil.ParseJSONResponse(t, rec, &probe)
	assert.Equal(t, "Chat proxy is working", probe.Message)
	assert.Equal(t, backend.URL+"/api", probe.APIURL)
	assert.Equal(t, backend.URL, probe.DemoURL)

	rec = httptest.NewRecorder()
	handler.HistoryProbe(rec, httptest.NewRequest(http.MethodHead, "/api/chat/history/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, backend.Calls)
}
