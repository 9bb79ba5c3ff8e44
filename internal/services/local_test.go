package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityServer fakes the token and verify endpoints.
type identityServer struct {
	*httptest.Server

	tokenStatus  int
	tokenBody    string
	verifyStatus int
	verifyBody   string

	tokenCalls  int
	verifyCalls int
	lastBearer  string
	lastLogin   tokenRequest
}

func newIdentityServer(t *testing.T) *identityServer {
	t.Helper()

	s := &identityServer{
		tokenStatus:  http.StatusOK,
		tokenBody:    `{"access":"A","refresh":"B"}`,
		verifyStatus: http.StatusOK,
		verifyBody:   `{"id":1,"email":"x@y.com","first_name":"Ana","last_name":"Paz"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls++
		json.NewDecoder(r.Body).Decode(&s.lastLogin)
		w.WriteHeader(s.tokenStatus)
		w.Write([]byte(s.tokenBody))
	})
	mux.HandleFunc("/api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		s.verifyCalls++
		s.lastBearer = r.Header.Get("Authorization")
		w.WriteHeader(s.verifyStatus)
		w.Write([]byte(s.verifyBody))
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *identityServer) authenticator() *LocalAuthenticator {
	return NewLocalAuthenticator(&config.IdentityConfig{
		TokenURL:  s.URL + "/api/token/",
		VerifyURL: s.URL + "/api/auth/verify",
	}, 5*time.Second)
}

func TestLocalAuthenticator(t *testing.T) {
	ctx := context.Background()

	t.Run("exchanges credentials and verifies token", func(t *testing.T) {
		idp := newIdentityServer(t)
		store := session.NewMemoryStore()

		sess, err := idp.authenticator().Authenticate(ctx, store, Credentials{Username: "ana", Password: "secret"})
		require.NoError(t, err)

		assert.Equal(t, tokenRequest{Username: "ana", Password: "secret"}, idp.lastLogin)
		assert.Equal(t, "Bearer A", idp.lastBearer)
		assert.Equal(t, "A", sess.AccessToken)
		assert.Equal(t, "B", sess.RefreshToken)
		assert.Equal(t, models.ProviderLocal, sess.Provider)
		assert.Equal(t, models.ID("1"), sess.User.ID)
		assert.Equal(t, "Ana", sess.User.FirstName)

		values := store.Snapshot()
		assert.Equal(t, "A", values[session.KeyAccessToken])
		assert.Equal(t, "B", values[session.KeyRefreshToken])
	})

	t.Run("rejects blank credentials without network", func(t *testing.T) {
		idp := newIdentityServer(t)

		_, err := idp.authenticator().Authenticate(ctx, session.NewMemoryStore(), Credentials{Username: "  ", Password: "x"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Zero(t, idp.tokenCalls)
	})

	t.Run("surfaces backend detail on rejected credentials", func(t *testing.T) {
		idp := newIdentityServer(t)
		idp.tokenStatus = http.StatusUnauthorized
		idp.tokenBody = `{"detail":"No active account found with the given credentials"}`
		store := session.NewMemoryStore()

		_, err := idp.authenticator().Authenticate(ctx, store, Credentials{Username: "ana", Password: "bad"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, "No active account found with the given credentials", err.Error())
		assert.Zero(t, idp.verifyCalls)
		assert.Empty(t, store.Snapshot())
	})

	t.Run("uses generic message without detail", func(t *testing.T) {
		idp := newIdentityServer(t)
		idp.tokenStatus = http.StatusBadRequest
		idp.tokenBody = `not json`

		_, err := idp.authenticator().Authenticate(ctx, session.NewMemoryStore(), Credentials{Username: "ana", Password: "bad"})
		assert.EqualError(t, err, "Credenciales incorrectas o error al obtener tokens.")
	})

	t.Run("rolls back tokens when verification fails", func(t *testing.T) {
		idp := newIdentityServer(t)
		idp.verifyStatus = http.StatusForbidden
		store := session.NewMemoryStore()
		require.NoError(t, store.Set(ctx, session.KeyTheme, "dark"))

		_, err := idp.authenticator().Authenticate(ctx, store, Credentials{Username: "ana", Password: "secret"})
		assert.ErrorIs(t, err, ErrVerificationFailed)

		values := store.Snapshot()
		assert.NotContains(t, values, session.KeyAccessToken)
		assert.NotContains(t, values, session.KeyRefreshToken)
		assert.NotContains(t, values, session.KeyUserData)
		assert.Equal(t, "dark", values[session.KeyTheme])
	})

	t.Run("rolls back when profile is unreadable", func(t *testing.T) {
		idp := newIdentityServer(t)
		idp.verifyBody = `<html>`
		store := session.NewMemoryStore()

		_, err := idp.authenticator().Authenticate(ctx, store, Credentials{Username: "ana", Password: "secret"})
		assert.ErrorIs(t, err, ErrVerificationFailed)
		assert.Empty(t, store.Snapshot())
	})

	t.Run("treats unreachable token endpoint as invalid credentials", func(t *testing.T) {
		a := NewLocalAuthenticator(&config.IdentityConfig{
			TokenURL:  "http://localhost:1/api/token/",
			VerifyURL: "http://localhost:1/api/auth/verify",
		}, time.Second)

		_, err := a.Authenticate(ctx, session.NewMemoryStore(), Credentials{Username: "ana", Password: "secret"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
