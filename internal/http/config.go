package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/database"
	"github.com/nutrinani/nutrinani/internal/metrics"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Authenticator auth.Authenticator
	SignInLimiter *auth.SignInLimiter
	Sessions      *auth.BrowserSessions
	Database      *database.Database
	Logger        *zap.Logger

	// Authentication
	AuthConfig config.Auth

	// Business API base URL; empty means demo data only
	APIBaseURL string

	// Metrics (optional)
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// Application info
	Version string
}
