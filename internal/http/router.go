package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/metrics"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestLogger(log.Named("http")))
	router.Use(gin.Recovery())

	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}

	// Apply security headers to all responses
	router.Use(SecurityHeadersMiddleware(cfg.APIBaseURL, cfg.AuthConfig.Domain))
	if cfg.AuthConfig.SecureCookies {
		router.Use(StrictTransportSecurityMiddleware())
	}

	// Browser-facing routes share a cookie session and CSRF protection
	browser := router.Group("")
	if cfg.Sessions != nil {
		browser.Use(cfg.Sessions.Middleware())
	}
	if cfg.AuthConfig.CSRFSecret != "" {
		browser.Use(auth.CSRFMiddleware([]byte(cfg.AuthConfig.CSRFSecret), cfg.AuthConfig.SecureCookies, cfg.Authenticator))
	}

	// Auth routes, including the hosted UI return on "/"
	authController := auth.NewController(cfg.Authenticator, cfg.SignInLimiter, cfg.Sessions, log)
	authController.RegisterRoutes(browser)

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Authenticator, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}

	// API endpoints see the signed-in user, if any
	middleware := auth.NewMiddleware(cfg.Authenticator)
	apiGroup := browser.Group("/api")
	apiGroup.Use(middleware.Handler())

	appConfig := NewAppConfigController(cfg.Authenticator, cfg.APIBaseURL, cfg.AuthConfig.Federated())
	apiGroup.GET("/config", appConfig.Get)
	apiGroup.GET("/profile", middleware.RequireUser(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": auth.GetUser(c)})
	})

	return router
}
