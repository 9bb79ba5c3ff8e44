// Package middleware contains the gateway's HTTP middleware: request
// logging, panic recovery, security headers, CORS, Prometheus metrics, rate
// limiting, the bearer check of the proxy routes and the browser context
// that carries each visitor's session.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// CORS allows the browser front-end to call the gateway with credentials.
//
// Configuration:
//   - Allowed methods: GET, POST, PUT, DELETE, HEAD, OPTIONS
//   - Allowed headers: Accept, Authorization, Content-Type, X-Request-ID
//   - Exposed headers: X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining
//   - Credentials: enabled, the browser context cookie must travel
//
// Example:
//
//	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Logger logs the start and end of every request and tags both lines with
// a request ID. The ID is taken from X-Request-ID when the caller sent one,
// generated otherwise, echoed in the response and stored in the context
// for utils.GetRequestID.
//
// The Authorization header is never logged, only whether it was present.
//
// Example logs:
//
//	{"level":"info","request_id":"abc-123","method":"POST","path":"/api/chat/","auth":true,"msg":"Request started"}
//	{"level":"info","request_id":"abc-123","status":200,"bytes":156,"duration_ms":845,"msg":"Request completed"}
func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			r = r.WithContext(utils.WithRequestID(r.Context(), requestID))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set("X-Request-ID", requestID)

			log.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", utils.ExtractClientIP(r)).
				Bool("auth", r.Header.Get("Authorization") != "").
				Msg("Request started")

			next.ServeHTTP(ww, r)

			log.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration_ms", time.Since(start)).
				Msg("Request completed")
		})
	}
}

// Recoverer turns a panicking handler into a 500 JSON error and logs the
// panic value with the request ID.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error().
						Interface("error", rec).
						Str("request_id", utils.GetRequestID(r.Context())).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("Panic recovered")

					utils.RespondWithError(w, r, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the standard hardening headers. Images are allowed
// from Google and Facebook so OAuth avatars render.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https://lh3.googleusercontent.com https://*.fbcdn.net https://graph.facebook.com")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}
