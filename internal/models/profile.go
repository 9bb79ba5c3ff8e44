package models

import "strings"

// Display fallbacks shown when a profile lacks the relevant fields.
const (
	PlaceholderName  = "Usuario"
	PlaceholderEmail = "Sin email"
)

// UserProfileView derives display values from a profile. It is the only
// place that knows how each provider shapes its profile; handlers, the chat
// controller and the terminal client all go through it.
//
// Every method is safe on a nil profile and never returns an empty name.
//
// Example:
//
//	view := models.NewUserProfileView(session.User, session.Provider)
//	fmt.Println(view.FullName()) // "Ana Paz"
type UserProfileView struct {
	profile  *UserProfile
	provider Provider
}

// NewUserProfileView binds a profile to the provider that issued it.
func NewUserProfileView(profile *UserProfile, provider Provider) UserProfileView {
	return UserProfileView{profile: profile, provider: provider}
}

// Provider returns the bound provider.
func (v UserProfileView) Provider() Provider {
	return v.provider
}

// FullName returns the display name.
//
// Fallback order:
//   - google/facebook: user_metadata.full_name, email, "Usuario"
//   - local: "first last", name, email, "Usuario"
func (v UserProfileView) FullName() string {
	p := v.profile
	if p == nil {
		return PlaceholderName
	}

	if v.provider.IsOAuth() {
		if p.UserMetadata != nil {
			if name := strings.TrimSpace(p.UserMetadata.FullName); name != "" {
				return name
			}
		}
		return firstNonBlank(p.Email, PlaceholderName)
	}

	if full := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName)); full != "" {
		return full
	}
	return firstNonBlank(p.Name, p.Email, PlaceholderName)
}

// FirstName returns the first word of FullName.
func (v UserProfileView) FirstName() string {
	fields := strings.Fields(v.FullName())
	if len(fields) == 0 {
		return PlaceholderName
	}
	return fields[0]
}

// Email returns the profile email or "Sin email".
func (v UserProfileView) Email() string {
	if v.profile == nil {
		return PlaceholderEmail
	}
	return firstNonBlank(v.profile.Email, PlaceholderEmail)
}

// AvatarURL returns the OAuth avatar, or "" for local profiles and
// profiles without one.
func (v UserProfileView) AvatarURL() string {
	if !v.provider.IsOAuth() || v.profile == nil || v.profile.UserMetadata == nil {
		return ""
	}
	return strings.TrimSpace(v.profile.UserMetadata.AvatarURL)
}

// ProfileSummary is the JSON form of a UserProfileView.
type ProfileSummary struct {
	DisplayName string   `json:"display_name"`
	FirstName   string   `json:"first_name"`
	Email       string   `json:"email"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Provider    Provider `json:"provider"`
}

// Summary renders the view for API responses.
func (v UserProfileView) Summary() ProfileSummary {
	return ProfileSummary{
		DisplayName: v.FullName(),
		FirstName:   v.FirstName(),
		Email:       v.Email(),
		AvatarURL:   v.AvatarURL(),
		Provider:    v.provider,
	}
}

func firstNonBlank(values ...string) string {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
