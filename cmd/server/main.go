package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ieraasyl/ChatGateway/internal/database"
	"github.com/ieraasyl/ChatGateway/internal/handlers"
	"github.com/ieraasyl/ChatGateway/internal/middleware"
	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/pkg/cache"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/ieraasyl/ChatGateway/docs" // Registers the OpenAPI document
)

// @title           UBE Chat Gateway API
// @version         1.0
// @description     Session, login and chat proxy gateway for the UBE assistant.
// @description     Features: local university login, Google and Facebook OAuth, chat and history proxying, rate limiting.
//
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
//
// @securityDefinitions.apikey ContextCookie
// @in cookie
// @name ctx_id
// @description Browser context identifier set by the gateway
func main() {
	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Server.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	log.Info().
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("backend", cfg.Backend.APIURL).
		Msg("Starting chat gateway")

	redisDB, err := database.NewRedisDB(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisDB.Close()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(cfg, redisDB),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped gracefully")
}

// newRouter wires services, handlers and middleware onto a chi router.
func newRouter(cfg *config.Config, redisDB *database.RedisDB) http.Handler {
	stateCache := cache.NewCache(redisDB.Client())

	// Services
	backend := services.NewBackendClient(&cfg.Backend)
	oauthService := services.NewOAuthService(&cfg.OAuth, stateCache)
	authService := services.NewAuthService()
	authService.Register(models.ProviderLocal, services.NewLocalAuthenticator(&cfg.Identity, cfg.Backend.Timeout))
	for _, provider := range oauthService.Providers() {
		authService.Register(provider, oauthService.Authenticator(provider))
	}

	// Handlers
	proxyHandler := handlers.NewProxyHandler(backend)
	authHandler := handlers.NewAuthHandler(authService, oauthService, cfg.Server.FrontendURL)
	chatViewHandler := handlers.NewChatViewHandler()
	healthHandler := handlers.NewHealthHandler(redisDB, backend)
	contextHandler := handlers.NewContextHandler(redisDB, cfg.Session.CookieName)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)
	browserCtx := middleware.NewBrowserContext(redisDB, &cfg.Session, cfg.Server.IsProduction())
	requireSession := middleware.RequireSession(cfg.Server.FrontendURL)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(cfg.Backend.Timeout + 10*time.Second))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Get("/api/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/api/docs/doc.json"),
	))

	// Chat proxy. The caller's bearer token is forwarded as is.
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/", proxyHandler.ChatProbe)
		r.Head("/history/", proxyHandler.HistoryProbe)
		r.With(rateLimiter.Limit("demo")).Post("/demo", proxyHandler.Demo)

		// A signed-in browser needs no header: its context token is used.
		r.Group(func(r chi.Router) {
			r.Use(browserCtx.Attach())
			r.Use(middleware.RequireBearer())
			r.Post("/", proxyHandler.Chat)
			r.Get("/history/", proxyHandler.History)
			r.Post("/history/", proxyHandler.History)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(browserCtx.Middleware())

		r.Get("/quick-actions", chatViewHandler.QuickActions)
		r.Put("/preferences/theme", chatViewHandler.SetTheme)
		r.With(requireSession).Get("/chat/view", chatViewHandler.View)
		r.Get("/context", contextHandler.Info)
		r.Delete("/context", contextHandler.Forget)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rateLimiter.Limit("auth"))
				r.Post("/login", authHandler.Login)
				r.Get("/{provider}/login", authHandler.OAuthLogin)
				r.Get("/{provider}/callback", authHandler.OAuthCallback)
			})

			r.Post("/logout", authHandler.Logout)
			r.With(requireSession).Get("/me", authHandler.Me)
		})
	})

	return r
}
