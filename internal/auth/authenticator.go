package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/cognito"
	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/identity"
	"github.com/nutrinani/nutrinani/internal/storage"
)

// Authenticator is the facade contract. Both backends satisfy it; callers
// never check the mode to decide what to call.
type Authenticator interface {
	Mode() config.AuthMode

	SignUp(ctx context.Context, email, password, name string) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	SignIn(ctx context.Context, email, password string) (*User, error)
	// SignInWithGoogle starts federated sign-in. The outcome is only visible
	// through a later CurrentUser call; the Browser in ctx receives the
	// navigation or reload request.
	SignInWithGoogle(ctx context.Context) error
	// CompleteRedirect finishes a federated sign-in when the browser returns.
	CompleteRedirect(ctx context.Context, code, state string) error
	SignOut(ctx context.Context) error

	// AccessToken returns the bearer credential, or false when there is none.
	AccessToken(ctx context.Context) (string, bool)
	// CurrentUser returns the signed-in user, or nil.
	CurrentUser(ctx context.Context) *User
}

// Deps are the collaborators New wires into the selected backend.
type Deps struct {
	// Storage holds the demo session. Required in demo mode.
	Storage storage.Store
	// Provider overrides the Cognito client in production mode.
	Provider identity.Provider
	// Cache persists the production session. Optional.
	Cache cognito.SessionCache
	Logger *zap.Logger
}

// SelectMode is a pure function of configuration presence.
func SelectMode(cfg config.Auth) config.AuthMode {
	if cfg.Complete() {
		return config.AuthModeCognito
	}
	return config.AuthModeDemo
}

// New selects the mode and builds its backend immediately. Incomplete
// provider configuration falls back to demo mode with a warning.
func New(ctx context.Context, cfg *config.Config, deps Deps) (Authenticator, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("auth")

	switch SelectMode(cfg.Auth) {
	case config.AuthModeCognito:
		provider := deps.Provider
		if provider == nil {
			client, err := cognito.New(ctx, cfg.Auth, deps.Cache, log)
			if err != nil {
				return nil, fmt.Errorf("auth: configure identity provider: %w", err)
			}
			provider = client
		}
		log.Info("auth mode selected",
			zap.String("mode", string(config.AuthModeCognito)),
			zap.String("region", cfg.Auth.Region),
			zap.Bool("federated", cfg.Auth.Federated()),
		)
		return NewRemoteBackend(provider, log), nil

	default:
		if deps.Storage == nil {
			return nil, errors.New("auth: demo mode requires storage")
		}
		log.Warn("auth not configured: missing COGNITO_USER_POOL_ID or COGNITO_CLIENT_ID, running in demo mode")
		return NewLocalBackend(deps.Storage, cfg.Demo.Latency, log), nil
	}
}
