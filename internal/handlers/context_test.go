package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/database"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	mr := testutil.SetupMiniRedis(t)
	db := testutil.NewTestRedisDB(t, mr)
	handler := NewContextHandler(db, "ctx_id")
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.SetContextInfo(ctx, "c1", database.ContextInfo{
		DeviceInfo: "Chrome on macOS",
		IPAddress:  "10.0.0.1",
		CreatedAt:  created,
	}, time.Hour))
	store := session.NewRedisStore(db, "c1", time.Hour)
	require.NoError(t, session.SetTheme(ctx, store, session.ThemeDark))

	t.Run("info returns the device record", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Info(rec, withStore(httptest.NewRequest(http.MethodGet, "/api/v1/context", nil), store))

		require.Equal(t, http.StatusOK, rec.Code)
		var response ContextResponse
		testutil.ParseJSONResponse(t, rec, &response)
		assert.Equal(t, "c1", response.ContextID)
		assert.Equal(t, "Chrome on macOS", response.DeviceInfo)
		assert.True(t, created.Equal(response.CreatedAt))
	})

	t.Run("unknown context is 404", func(t *testing.T) {
		other := session.NewRedisStore(db, "missing", time.Hour)
		rec := httptest.NewRecorder()
		handler.Info(rec, withStore(httptest.NewRequest(http.MethodGet, "/api/v1/context", nil), other))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("memory store has no context id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Info(rec, withStore(httptest.NewRequest(http.MethodGet, "/api/v1/context", nil), session.NewMemoryStore()))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("forget wipes the context and expires the cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Forget(rec, withStore(httptest.NewRequest(http.MethodDelete, "/api/v1/context", nil), store))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Browser context cleared")

		cookie := testutil.FindCookie(rec, "ctx_id")
		require.NotNil(t, cookie)
		assert.Equal(t, -1, cookie.MaxAge)

		assert.False(t, mr.Exists("browser_ctx:c1"))
		assert.False(t, mr.Exists("browser_ctx_info:c1"))

		theme, err := session.Theme(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, session.ThemeLight, theme)
	})
}
