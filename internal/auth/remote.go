package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/identity"
)

// signOutRedirector is implemented by providers with a hosted logout page.
type signOutRedirector interface {
	SignOutURL() (string, bool)
}

// RemoteBackend delegates to an identity provider. It keeps no session state
// of its own and adds no locking; the provider synchronizes its cache.
type RemoteBackend struct {
	provider identity.Provider
	log      *zap.Logger
}

var _ Authenticator = (*RemoteBackend)(nil)

func NewRemoteBackend(provider identity.Provider, log *zap.Logger) *RemoteBackend {
	return &RemoteBackend{provider: provider, log: log}
}

func (r *RemoteBackend) Mode() config.AuthMode {
	return config.AuthModeCognito
}

// SignUp registers the account without signing in. Provider errors are returned unchanged.
func (r *RemoteBackend) SignUp(ctx context.Context, email, password, name string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}
	email = strings.TrimSpace(email)

	attrs := map[string]string{"email": email}
	if name != "" {
		attrs["name"] = name
	}
	return r.provider.SignUp(ctx, email, password, attrs)
}

func (r *RemoteBackend) ConfirmSignUp(ctx context.Context, email, code string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	if strings.TrimSpace(code) == "" {
		return ErrCodeRequired
	}
	return r.provider.ConfirmSignUp(ctx, strings.TrimSpace(email), strings.TrimSpace(code))
}

// SignIn authenticates, then resolves the user through CurrentUser so the
// result reflects the provider's stored attributes.
func (r *RemoteBackend) SignIn(ctx context.Context, email, password string) (*User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)

	sess, err := r.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}

	if user := r.CurrentUser(ctx); user != nil {
		return user, nil
	}
	if user := userFromIDToken(sess.IDToken); user != nil {
		return user, nil
	}
	return &User{Email: email}, nil
}

func (r *RemoteBackend) SignInWithGoogle(ctx context.Context) error {
	url, err := r.provider.FederatedSignInURL(ctx, identity.GoogleProvider)
	if err != nil {
		return err
	}
	browserFrom(ctx).Navigate(ctx, url)
	return nil
}

func (r *RemoteBackend) CompleteRedirect(ctx context.Context, code, state string) error {
	_, err := r.provider.CompleteFederatedSignIn(ctx, code, state)
	return err
}

// SignOut clears the provider session. Remote revocation failures are logged, not returned.
func (r *RemoteBackend) SignOut(ctx context.Context) error {
	if err := r.provider.SignOut(ctx); err != nil {
		r.log.Warn("remote sign out failed", zap.Error(err))
	}
	if p, ok := r.provider.(signOutRedirector); ok {
		if url, ok := p.SignOutURL(); ok {
			browserFrom(ctx).Navigate(ctx, url)
		}
	}
	return nil
}

func (r *RemoteBackend) AccessToken(ctx context.Context) (string, bool) {
	sess, err := r.provider.CurrentSession(ctx)
	if err != nil {
		r.logLookup("access token", err)
		return "", false
	}
	if sess.AccessToken == "" {
		return "", false
	}
	return sess.AccessToken, true
}

// CurrentUser maps the provider's attributes to a User, falling back to the
// ID token's claims when the attribute lookup fails.
func (r *RemoteBackend) CurrentUser(ctx context.Context) *User {
	sess, err := r.provider.CurrentSession(ctx)
	if err != nil {
		r.logLookup("current user", err)
		return nil
	}

	attrs, err := r.provider.UserAttributes(ctx, sess.AccessToken)
	if err != nil {
		r.log.Debug("attribute lookup failed, using id token claims", zap.Error(err))
		return userFromIDToken(sess.IDToken)
	}

	user := &User{ID: attrs["sub"], Email: attrs["email"], Name: attrs["name"]}
	if user.ID == "" {
		if claims, err := identity.ParseClaims(sess.IDToken); err == nil {
			user.ID = claims.Subject
		}
	}
	return user
}

func (r *RemoteBackend) logLookup(what string, err error) {
	if errors.Is(err, identity.ErrNoSession) {
		return
	}
	r.log.Debug("session lookup failed", zap.String("lookup", what), zap.Error(err))
}

func userFromIDToken(raw string) *User {
	if raw == "" {
		return nil
	}
	claims, err := identity.ParseClaims(raw)
	if err != nil {
		return nil
	}
	return &User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}
}

// ErrorMessage returns the message to show a user for err: the provider's
// own message when err carries one, otherwise err's text.
func ErrorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	if errors.Is(err, identity.ErrNewPasswordRequired) {
		return identity.ErrNewPasswordRequired.Error()
	}
	return err.Error()
}

// ErrorCode returns the provider's error code, such as UsernameExistsException, if any.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
