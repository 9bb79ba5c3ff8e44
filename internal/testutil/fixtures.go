// Package testutil provides fixtures, fake collaborators and HTTP helpers
// shared by the gateway's tests.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/models"
)

// LocalProfile returns a profile as returned by the university verify endpoint.
func LocalProfile() *models.UserProfile {
	return &models.UserProfile{
		ID:        "1",
		Email:     "x@y.com",
		FirstName: "Ana",
		LastName:  "Paz",
	}
}

// GoogleProfile returns a normalized Google profile.
func GoogleProfile() *models.UserProfile {
	return &models.UserProfile{
		ID:    "109876543210",
		Email: "ana.paz@gmail.com",
		UserMetadata: &models.UserMetadata{
			FullName:  "Ana Paz",
			AvatarURL: "https://lh3.googleusercontent.com/a/ana",
		},
		AppMetadata: &models.AppMetadata{Provider: "google"},
	}
}

// TestSession returns an authenticated local session with an opaque token.
func TestSession() *models.Session {
	return &models.Session{
		AccessToken:  "A",
		RefreshToken: "B",
		User:         LocalProfile(),
		Provider:     models.ProviderLocal,
	}
}

// UnsignedJWT builds a JWT with the given claims and a dummy signature.
// Only useful where tokens are inspected without verification.
func UnsignedJWT(claims map[string]interface{}) string {
	enc := base64.RawURLEncoding
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

// ExpiringJWT returns an unsigned JWT for user 42 expiring at exp.
func ExpiringJWT(exp time.Time) string {
	return UnsignedJWT(map[string]interface{}{
		"user_id": 42,
		"exp":     exp.Unix(),
	})
}

// Navigator records navigation calls.
type Navigator struct {
	mu       sync.Mutex
	Pushed   []string
	Replaced []string
}

func (n *Navigator) Push(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Pushed = append(n.Pushed, path)
}

func (n *Navigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Replaced = append(n.Replaced, path)
}

// Last returns the most recent Push or "" when none happened.
func (n *Navigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Pushed) == 0 {
		return ""
	}
	return n.Pushed[len(n.Pushed)-1]
}

// Notifier counts session expiry notifications.
type Notifier struct {
	mu      sync.Mutex
	Expired int
}

func (n *Notifier) SessionExpired() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Expired++
}

// Count returns the number of notifications so far.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Expired
}

// UserAgents provides common user agent strings for testing
var UserAgents = struct {
	Chrome       string
	MobileSafari string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}
