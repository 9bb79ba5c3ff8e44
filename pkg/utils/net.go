package utils

import (
	"net/http"
	"strings"
)

// ExtractClientIP returns the caller's IP address, preferring proxy headers.
// Order: first X-Forwarded-For entry, X-Real-IP, then RemoteAddr without port.
// Used as the rate limiting key.
func ExtractClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	remoteAddr := r.RemoteAddr

	// [::1]:8080
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]"); idx != -1 {
			return remoteAddr[1:idx]
		}
	}

	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}

	return remoteAddr
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string when the header is absent or uses another
// scheme.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
