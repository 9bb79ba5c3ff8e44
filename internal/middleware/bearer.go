package middleware

import (
	"net/http"
	"strings"

	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// MsgMissingAuthorization is the error text the browser client matches on.
const MsgMissingAuthorization = "Missing authorization header"

// RequireBearer makes sure a proxied call carries an Authorization header.
// A request without one borrows the access token of its browser context
// (see BrowserContext.Attach). With neither, it answers
// 401 {"error":"Missing authorization header"}. The token itself is not
// validated; the backend decides whether it is good.
func RequireBearer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
				next.ServeHTTP(w, r)
				return
			}

			if token := contextToken(r); token != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+token)
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().
				Err(services.ErrMissingAuthorization).
				Str("request_id", utils.GetRequestID(r.Context())).
				Str("path", r.URL.Path).
				Msg("Rejecting proxy call")
			RecordUpstream(upstreamRoute(r), "unauthorized")
			utils.RespondWithProxyError(w, r, http.StatusUnauthorized, MsgMissingAuthorization, "")
		})
	}
}

// contextToken returns the access token stored in the request's browser
// context, or "" when there is none.
func contextToken(r *http.Request) string {
	store, ok := GetStore(r.Context())
	if !ok {
		return ""
	}
	token, _, err := store.Get(r.Context(), session.KeyAccessToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read session token")
		return ""
	}
	return token
}

func upstreamRoute(r *http.Request) string {
	if strings.Contains(r.URL.Path, "/history") {
		return "history"
	}
	return "chat"
}
