// Package identity defines what the production auth backend needs from a
// hosted identity provider. The provider owns the signed-in session and its
// token cache; callers only observe it through CurrentSession.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSession means nobody is signed in, or the stored session can no longer be refreshed.
	ErrNoSession = errors.New("identity: no active session")
	// ErrNewPasswordRequired is returned when the pool demands a password change before sign-in completes.
	ErrNewPasswordRequired = errors.New("New password required")
	// ErrUnsupportedChallenge covers every other authentication challenge (MFA, custom auth).
	ErrUnsupportedChallenge = errors.New("identity: unsupported authentication challenge")
	// ErrFederationDisabled is returned by federated operations when no hosted domain is configured.
	ErrFederationDisabled = errors.New("identity: federated sign-in is not configured")
	// ErrInvalidState is returned when a redirect comes back with an unknown or expired state.
	ErrInvalidState = errors.New("identity: invalid or expired sign-in state")
)

// GoogleProvider is the identity provider name the hosted UI uses for Google.
const GoogleProvider = "Google"

// Session is the token set of a signed-in principal.
type Session struct {
	Username     string
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the access token is present and not expired at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// Provider is a hosted user pool.
type Provider interface {
	// SignUp registers an account; the caller is not signed in afterwards.
	SignUp(ctx context.Context, username, password string, attributes map[string]string) error
	ConfirmSignUp(ctx context.Context, username, code string) error
	// Authenticate signs in with a password and makes the result the current session.
	Authenticate(ctx context.Context, username, password string) (*Session, error)
	// CurrentSession returns the current session, refreshing it if expired.
	CurrentSession(ctx context.Context) (*Session, error)
	// UserAttributes fetches the principal's profile attributes with an access token.
	UserAttributes(ctx context.Context, accessToken string) (map[string]string, error)
	// SignOut revokes the session remotely and clears the local cache. The
	// local cache is cleared even when revocation fails.
	SignOut(ctx context.Context) error
	// FederatedSignInURL returns the hosted UI URL that starts sign-in through idp.
	FederatedSignInURL(ctx context.Context, idp string) (string, error)
	// CompleteFederatedSignIn exchanges the code returned to the redirect URL.
	CompleteFederatedSignIn(ctx context.Context, code, state string) (*Session, error)
}

type sessionIDKey struct{}

// WithSessionID scopes provider and demo sessions in ctx to one browser.
// Without it a process has a single session, which is what the CLI uses.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the browser session id in ctx, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// ScopedKey appends the browser session id in ctx to base.
func ScopedKey(ctx context.Context, base string) string {
	if id := SessionID(ctx); id != "" {
		return base + ":" + id
	}
	return base
}
