// Package utils provides common utility functions for HTTP response handling,
// request ID management, and cookie operations. Two JSON error shapes are
// supported: the gateway's own envelope (ErrorResponse) and the proxy
// envelope (ProxyError) that mirrors what the browser client already parses.
package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// requestIDKey is the context key for request ID
const requestIDKey contextKey = "request_id"

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if the context is nil or no request ID is present.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID adds a request ID to the context. The Logger middleware
// calls this once per request.
//
// Example:
//
//	ctx := utils.WithRequestID(r.Context(), uuid.New().String())
//	r = r.WithContext(ctx)
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ErrorResponse is the error envelope for the gateway's own endpoints
// (auth, preferences, view model).
type ErrorResponse struct {
	Error     string `json:"error"`                // HTTP status text (e.g., "Bad Request")
	Message   string `json:"message,omitempty"`    // Detailed error message
	RequestID string `json:"request_id,omitempty"` // Request ID for distributed tracing
}

// ProxyError is the error envelope returned by the chat proxy routes.
// The browser client reads "error" for display and "details" for logging.
//
// JSON example:
//
//	{"error": "Backend error: 502", "details": "<html>Bad Gateway</html>"}
type ProxyError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RespondWithError sends a JSON error response with automatic request ID extraction.
//
// Example:
//
//	if req.Username == "" {
//	    utils.RespondWithError(w, r, http.StatusBadRequest, "Username is required")
//	    return
//	}
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	requestID := GetRequestID(r.Context())
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		RequestID: requestID,
	}
	writeJSON(w, statusCode, response, requestID)
}

// RespondWithProxyError sends the proxy error envelope. The status code is
// passed through untouched so backend statuses can be relayed.
//
// Example:
//
//	utils.RespondWithProxyError(w, r, http.StatusUnauthorized, "Missing authorization header", "")
func RespondWithProxyError(w http.ResponseWriter, r *http.Request, statusCode int, message, details string) {
	writeJSON(w, statusCode, ProxyError{Error: message, Details: details}, GetRequestID(r.Context()))
}

// RespondWithJSON sends a JSON response with the given status code and data.
//
// Example:
//
//	utils.RespondWithJSON(w, r, http.StatusOK, map[string]string{
//	    "theme": "dark",
//	})
func RespondWithJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data, GetRequestID(r.Context()))
}

// RespondWithRawJSON writes an already-encoded JSON body. Used to relay
// backend payloads without a decode/encode round trip.
func RespondWithRawJSON(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("Failed to write relayed response")
	}
}

// RespondWithMessage sends a simple {"message": "..."} response.
//
// Example:
//
//	utils.RespondWithMessage(w, r, http.StatusOK, "Logged out successfully")
func RespondWithMessage(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	requestID := GetRequestID(r.Context())
	response := map[string]string{
		"message": message,
	}
	if requestID != "" {
		response["request_id"] = requestID
	}
	writeJSON(w, statusCode, response, requestID)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("Failed to encode JSON response")
	}
}

// SetAuthCookie sets a cookie with the gateway's security settings.
// In production, the cookie is marked as Secure (HTTPS only). The cookie is always
// HttpOnly and uses SameSite=Lax.
//
// Example:
//
//	utils.SetAuthCookie(w, "ctx_id", contextID, time.Now().Add(cfg.Session.TTL), true)
func SetAuthCookie(w http.ResponseWriter, name, value string, expires time.Time, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// ClearAuthCookie clears a cookie by setting MaxAge to -1.
func ClearAuthCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
