// Package models defines the core domain models shared by the gateway,
// the session store and the terminal client: sessions and the identity
// providers that create them, user profiles, chat messages and the quick
// action catalog.
//
// Profiles arrive from three different identity sources with different
// shapes, so fields are optional and decoding is lenient (numeric or string
// identifiers, missing metadata blocks).
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Provider identifies which identity source authenticated a session.
type Provider string

const (
	ProviderLocal    Provider = "local"    // University credential exchange
	ProviderGoogle   Provider = "google"   // Google OAuth 2.0
	ProviderFacebook Provider = "facebook" // Facebook OAuth 2.0
)

// ParseProvider normalizes a stored or submitted provider tag.
// The legacy tags "ube" and "drf" written by earlier clients map to
// ProviderLocal, as do empty and unknown tags.
//
// Example:
//
//	ParseProvider("Google") // ProviderGoogle
//	ParseProvider("ube")    // ProviderLocal
//	ParseProvider("")       // ProviderLocal
func ParseProvider(tag string) Provider {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "google":
		return ProviderGoogle
	case "facebook":
		return ProviderFacebook
	default:
		return ProviderLocal
	}
}

// LookupProvider is the strict form of ParseProvider used for URL path
// parameters: unknown tags are rejected instead of defaulting to local.
func LookupProvider(tag string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "local", "ube", "drf":
		return ProviderLocal, true
	case "google":
		return ProviderGoogle, true
	case "facebook":
		return ProviderFacebook, true
	default:
		return "", false
	}
}

// IsOAuth reports whether the provider uses the redirect-based OAuth flow.
func (p Provider) IsOAuth() bool {
	return p == ProviderGoogle || p == ProviderFacebook
}

func (p Provider) String() string {
	return string(p)
}

// ID is an identifier that may be encoded by upstream services as either a
// JSON number or a JSON string. It always re-encodes as a string.
type ID string

// UnmarshalJSON accepts 42, "42" and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// IDPtr returns a pointer to id, or nil for the empty ID.
func IDPtr(id string) *ID {
	if id == "" {
		return nil
	}
	v := ID(id)
	return &v
}

// UserMetadata carries display fields supplied by OAuth providers.
type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AppMetadata carries the provider that issued an OAuth session.
type AppMetadata struct {
	Provider string `json:"provider,omitempty"`
}

// UserProfile is the normalized profile stored under the "userData" key.
// Local profiles use FirstName/LastName; OAuth profiles use UserMetadata.
//
// JSON example (local):
//
//	{"id": 1, "email": "x@y.com", "first_name": "Ana", "last_name": "Paz"}
//
// JSON example (google):
//
//	{
//	  "id": "1093",
//	  "email": "ana@gmail.com",
//	  "user_metadata": {"full_name": "Ana Paz", "avatar_url": "https://..."},
//	  "app_metadata": {"provider": "google"}
//	}
type UserProfile struct {
	ID           ID            `json:"id,omitempty"`
	Email        string        `json:"email,omitempty"`
	Name         string        `json:"name,omitempty"`
	FirstName    string        `json:"first_name,omitempty"`
	LastName     string        `json:"last_name,omitempty"`
	Username     string        `json:"username,omitempty"`
	UserMetadata *UserMetadata `json:"user_metadata,omitempty"`
	AppMetadata  *AppMetadata  `json:"app_metadata,omitempty"`
}

// Session is an authenticated browser (or terminal) context. A session is
// authenticated exactly when AccessToken is non-empty. Sessions are replaced
// wholesale on login and removed on logout or expiry; they are never
// patched field by field.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         *UserProfile `json:"user,omitempty"`
	Provider     Provider     `json:"provider"`
}

// Authenticated reports whether the session carries an access token.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}
