// Package config provides application configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env files
// for local development and validates settings on startup so that a
// misconfigured backend URL or half-configured OAuth provider fails fast.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//
//	server := &http.Server{
//	    Addr: ":" + cfg.Server.Port,
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default endpoints observed in production deployments of the front-end.
const (
	DefaultDemoBackendURL = "https://ube-assistant-production.up.railway.app"
	DefaultLocalTokenURL  = "https://sga.ube.edu.ec/api/token/"
	DefaultLocalVerifyURL = "https://sga.ube.edu.ec/api/auth/verify"
)

// Config holds all configuration for the gateway.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Identity  IdentityConfig
	OAuth     OAuthConfig
	Redis     RedisConfig
	Session   SessionConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-specific configuration including port,
// environment, and external URLs.
type ServerConfig struct {
	Port        string
	Environment string
	FrontendURL string // Browser application origin; login and logout redirect here
	PublicURL   string // Externally visible base URL of this gateway
}

// BackendConfig describes the assistant API the proxy routes forward to.
type BackendConfig struct {
	APIURL     string        // Authenticated chat and history backend
	DemoURL    string        // Anonymous demo backend (/ventas/chat)
	DemoUserID string        // user_id sent to the demo backend when the caller omits one
	Timeout    time.Duration // Per-request upstream timeout
}

// IdentityConfig holds the local (university) credential endpoints.
type IdentityConfig struct {
	TokenURL  string // POST {username, password} -> {access, refresh}
	VerifyURL string // GET with bearer token -> profile JSON
}

// ProviderCredentials is a single OAuth client registration.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	UserInfoURL  string
}

// Enabled reports whether the provider has a client registration.
func (p ProviderCredentials) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// OAuthConfig holds Google and Facebook client credentials. A provider with
// no credentials is disabled.
type OAuthConfig struct {
	Google          ProviderCredentials
	Facebook        ProviderCredentials
	RedirectBaseURL string        // Callback base; "/api/v1/auth/{provider}/callback" is appended
	StateTTL        time.Duration // Lifetime of the CSRF state value
}

// RedisConfig holds Redis configuration including connection parameters,
// authentication, database selection, and pool size.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// SessionConfig controls the server-side browser context that stands in for
// browser-local storage.
type SessionConfig struct {
	CookieName    string
	TTL           time.Duration
	RedirectDelay time.Duration // Pause before redirecting to /auth after expiry
}

// CORSConfig holds Cross-Origin Resource Sharing configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting configuration for the login routes.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowDuration    time.Duration
}

// Load reads and validates configuration from environment variables.
// It attempts to load a .env file if present (for local development) but
// doesn't fail if the file is missing.
//
// BACKEND_API_URL falls back to NEXT_PUBLIC_API_URL and then to the demo
// backend, matching the variables the browser front-end already uses.
func Load() (*Config, error) {
	_ = godotenv.Load()

	demoURL := getEnv("DEMO_BACKEND_URL", DefaultDemoBackendURL)
	port := getEnv("PORT", "8080")
	publicURL := getEnv("PUBLIC_URL", "http://localhost:"+port)

	config := &Config{
		Server: ServerConfig{
			Port:        port,
			Environment: getEnv("ENV", "development"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
			PublicURL:   publicURL,
		},
		Backend: BackendConfig{
			APIURL:     strings.TrimRight(getEnv("BACKEND_API_URL", getEnv("NEXT_PUBLIC_API_URL", demoURL)), "/"),
			DemoURL:    strings.TrimRight(demoURL, "/"),
			DemoUserID: getEnv("DEMO_USER_ID", "luis"),
			Timeout:    getEnvAsDuration("BACKEND_TIMEOUT", 60*time.Second),
		},
		Identity: IdentityConfig{
			TokenURL:  getEnv("LOCAL_TOKEN_URL", DefaultLocalTokenURL),
			VerifyURL: getEnv("LOCAL_VERIFY_URL", DefaultLocalVerifyURL),
		},
		OAuth: OAuthConfig{
			Google: ProviderCredentials{
				ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
				UserInfoURL:  getEnv("GOOGLE_USER_INFO", "https://www.googleapis.com/oauth2/v2/userinfo"),
			},
			Facebook: ProviderCredentials{
				ClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
				ClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
				UserInfoURL:  getEnv("FACEBOOK_USER_INFO", "https://graph.facebook.com/me?fields=id,name,email,picture"),
			},
			RedirectBaseURL: strings.TrimRight(getEnv("OAUTH_REDIRECT_BASE_URL", publicURL), "/"),
			StateTTL:        getEnvAsDuration("OAUTH_STATE_TTL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 50),
		},
		Session: SessionConfig{
			CookieName:    getEnv("SESSION_COOKIE", "ctx_id"),
			TTL:           getEnvAsDuration("SESSION_TTL", 168*time.Hour),
			RedirectDelay: getEnvAsDuration("SESSION_REDIRECT_DELAY", time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks that every configured URL parses, ports are numeric and
// OAuth providers are either fully configured or not configured at all.
//
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}
	if _, err := strconv.Atoi(c.Redis.Port); err != nil {
		return fmt.Errorf("redis port must be a valid integer: %w", err)
	}

	urls := map[string]string{
		"frontend URL":        c.Server.FrontendURL,
		"backend API URL":     c.Backend.APIURL,
		"demo backend URL":    c.Backend.DemoURL,
		"local token URL":     c.Identity.TokenURL,
		"local verify URL":    c.Identity.VerifyURL,
		"OAuth redirect base": c.OAuth.RedirectBaseURL,
	}
	for name, raw := range urls {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if err := validateProvider("google", c.OAuth.Google); err != nil {
		return err
	}
	if err := validateProvider("facebook", c.OAuth.Facebook); err != nil {
		return err
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}

	return nil
}

func validateProvider(name string, p ProviderCredentials) error {
	if (p.ClientID == "") != (p.ClientSecret == "") {
		return fmt.Errorf("%s OAuth requires both client ID and client secret", name)
	}
	if p.Enabled() {
		if _, err := url.ParseRequestURI(p.UserInfoURL); err != nil {
			return fmt.Errorf("invalid %s user info URL: %w", name, err)
		}
	}
	return nil
}

// Address returns the Redis server address in "host:port" format.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction reports whether cookies should be marked Secure.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
// If the variable is not set or cannot be parsed as an integer, returns defaultValue.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration with a default fallback.
// Supports Go duration format: "300ms", "1.5h", "2h45m", etc.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice parses a comma-separated variable, dropping empty entries.
//
//	// ALLOWED_ORIGINS=http://localhost:3000,https://chat.ube.edu.ec
//	origins := getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
