package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vividly/identity-service/internal/config"
	"github.com/vividly/identity-service/internal/handler"
	"github.com/vividly/identity-service/internal/provider"
	"github.com/vividly/identity-service/internal/repository"
	"github.com/vividly/identity-service/internal/service"
	"github.com/vividly/identity-service/internal/utils"
	"github.com/vividly/identity-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	janitor *service.SessionJanitor
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
	)

	tokenService := service.NewTokenService(repos.Session, jwtManager, cfg.JWT.RefreshTokenExpiry.Duration)
	stateStore := service.NewStateStore(infra.Redis(), cfg.OAuth.StateTTL.Duration)
	verifier := service.NewCredentialVerifier(repos.Account, infra.Logger())
	resolver := service.NewIdentityResolver(repos.Account, repos.Identity, infra.Logger())
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	var janitor *service.SessionJanitor
	if cfg.Security.SessionCleanupInterval.Duration > 0 {
		janitor = service.NewSessionJanitor(
			repos.Session,
			cfg.Security.SessionRetention.Duration,
			cfg.Security.SessionCleanupInterval.Duration,
			infra.Logger(),
		)
	}

	authService := service.NewAuthService(
		repos,
		verifier,
		resolver,
		tokenService,
		stateStore,
		providerAdapters(cfg.OAuth),
		cfg.Security.BCryptCost,
		infra.Logger(),
	)

	authHandler := handler.NewAuthHandler(authService)
	oauthHandler := handler.NewOAuthHandler(authService)

	router := gin.Default()
	router.Use(otelgin.Middleware("identity-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, oauthHandler, authService, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		janitor: janitor,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// providerAdapters builds an adapter per provider with credentials
// configured. Unconfigured providers simply do not exist as routes.
func providerAdapters(cfg config.OAuthConfig) []provider.Adapter {
	var adapters []provider.Adapter

	if cfg.GitHub.Enabled() {
		adapters = append(adapters, provider.NewGitHub(providerConfig(cfg.GitHub, cfg.RequestTimeout.Duration)))
	}
	if cfg.Google.Enabled() {
		adapters = append(adapters, provider.NewGoogle(providerConfig(cfg.Google, cfg.RequestTimeout.Duration)))
	}

	return adapters
}

func providerConfig(p config.OAuthProviderConfig, timeout time.Duration) provider.Config {
	return provider.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		AuthURL:      p.AuthURL,
		TokenURL:     p.TokenURL,
		APIBaseURL:   p.APIBaseURL,
		Timeout:      timeout,
	}
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	oauthHandler *handler.OAuthHandler,
	authService service.AuthService,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register",
				handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey),
				authHandler.Register,
			)
			auth.POST("/login",
				handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey),
				authHandler.Login,
			)
			auth.POST("/refresh", authHandler.Refresh)

			oauth := auth.Group("/oauth/:provider")
			{
				oauth.GET("/authorize",
					handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey),
					oauthHandler.Authorize,
				)
				oauth.GET("/callback", oauthHandler.Callback)
			}

			authed := auth.Group("", handler.AuthMiddleware(authService))
			{
				authed.POST("/logout", authHandler.Logout)
				authed.POST("/logout-all", authHandler.LogoutAll)
				authed.GET("/me", authHandler.GetMe)
				authed.PATCH("/me", authHandler.UpdateMe)
				authed.DELETE("/me", authHandler.DeactivateMe)
				authed.PUT("/me/email", authHandler.ChangeEmail)
				authed.POST("/password", authHandler.ChangePassword)
				authed.GET("/sessions", authHandler.ListSessions)
				authed.DELETE("/sessions/:id", authHandler.RevokeSession)
			}
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	if a.janitor != nil {
		go a.janitor.Run(ctx)
	}

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
