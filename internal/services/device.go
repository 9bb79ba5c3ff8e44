package services

import (
	"strings"

	"github.com/mileusna/useragent"
)

// ExtractDeviceInfo turns a User-Agent header into a short label such as
// "Chrome 120.0.0.0 · Windows 10 · Desktop". The label is stored with each
// browser context and printed by the terminal client.
//
// Returns "Unknown Device" for an empty header and a truncated raw header
// when nothing could be recognized.
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	var parts []string
	if ua.Name != "" {
		parts = append(parts, joinVersion(ua.Name, ua.Version))
	}
	if ua.OS != "" {
		parts = append(parts, joinVersion(ua.OS, ua.OSVersion))
	}

	switch {
	case ua.Mobile:
		parts = append(parts, "Mobile")
	case ua.Tablet:
		parts = append(parts, "Tablet")
	case ua.Desktop:
		parts = append(parts, "Desktop")
	case ua.Bot:
		parts = append(parts, "Bot")
	}

	if len(parts) == 0 {
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}

	return strings.Join(parts, " · ")
}

func joinVersion(name, version string) string {
	if version == "" {
		return name
	}
	return name + " " + version
}
