package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, http.StatusBadRequest, "Username is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Bad Request", response.Error)
	assert.Equal(t, "Username is required", response.Message)
	assert.Equal(t, "req-1", response.RequestID)
}

func TestRespondWithProxyError(t *testing.T) {
	t.Run("details omitted when empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithProxyError(rec, httptest.NewRequest(http.MethodPost, "/api/chat/", nil), http.StatusUnauthorized, "Missing authorization header", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Missing authorization header"}`, rec.Body.String())
	})

	t.Run("backend status and body relayed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithProxyError(rec, httptest.NewRequest(http.MethodPost, "/api/chat/", nil), http.StatusBadGateway, "Backend error: 502", "<html>Bad Gateway</html>")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"error":"Backend error: 502","details":"<html>Bad Gateway</html>"}`, rec.Body.String())
	})
}

func TestRespondWithMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithMessage(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/context", nil), http.StatusOK, "Browser context cleared")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Browser context cleared"}`, rec.Body.String())
}

func TestRespondWithRawJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithRawJSON(rec, http.StatusOK, []byte(`[{"id":1}]`))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `[{"id":1}]`, rec.Body.String())
}

func TestAuthCookies(t *testing.T) {
	t.Run("set cookie is http only and secure in production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SetAuthCookie(rec, "ctx_id", "c1", time.Now().Add(time.Hour), true)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "c1", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)
		assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
		assert.Equal(t, "/", cookies[0].Path)
	})

	t.Run("clear cookie expires it", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ClearAuthCookie(rec, "ctx_id")

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "", cookies[0].Value)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})
}

func TestGetRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetRequestID(req.Context()))
	assert.Equal(t, "abc", GetRequestID(WithRequestID(req.Context(), "abc")))
}
