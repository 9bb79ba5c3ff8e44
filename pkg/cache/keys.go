package cache

import "fmt"

// OAuthStatePrefix namespaces pending OAuth state values.
const OAuthStatePrefix = "oauth_state:"

// OAuthStateKey is the key holding a pending OAuth state value.
//
// Example: "oauth_state:q1w2e3r4t5y6"
func OAuthStateKey(state string) string {
	return fmt.Sprintf("%s%s", OAuthStatePrefix, state)
}
