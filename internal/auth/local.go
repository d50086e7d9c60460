package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/identity"
	"github.com/nutrinani/nutrinani/internal/storage"
)

const (
	// DemoSessionKey is the storage key holding the demo session. Browser
	// sessions append their id to it.
	DemoSessionKey = "nutrinani_demo_session"
	// DemoToken stands in for a bearer credential while a demo session exists.
	DemoToken = "demo-jwt-token"
)

// GoogleDemoUser is the identity demo Google sign-in produces.
var GoogleDemoUser = User{Email: "google.demo@nutrinani.com", Name: "Google Demo User"}

// LocalBackend simulates the provider with local storage only. It accepts
// any credentials and keeps no lock around storage: concurrent writes resolve
// as last write wins.
type LocalBackend struct {
	store   storage.Store
	latency time.Duration
	log     *zap.Logger
}

var _ Authenticator = (*LocalBackend)(nil)

func NewLocalBackend(store storage.Store, latency time.Duration, log *zap.Logger) *LocalBackend {
	return &LocalBackend{store: store, latency: latency, log: log}
}

func (b *LocalBackend) Mode() config.AuthMode {
	return config.AuthModeDemo
}

func (b *LocalBackend) SignUp(ctx context.Context, email, password, name string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}
	if err := b.simulate(ctx, b.latency); err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if name == "" {
		name = localPart(email)
	}
	return b.persist(ctx, &User{Email: email, Name: name})
}

// ConfirmSignUp succeeds for any code: demo accounts are pre-confirmed.
func (b *LocalBackend) ConfirmSignUp(ctx context.Context, email, code string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	if strings.TrimSpace(code) == "" {
		return ErrCodeRequired
	}
	return b.simulate(ctx, b.latency/2)
}

func (b *LocalBackend) SignIn(ctx context.Context, email, password string) (*User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if err := b.simulate(ctx, b.latency); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	user := &User{Email: email, Name: localPart(email)}
	if err := b.persist(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (b *LocalBackend) SignInWithGoogle(ctx context.Context) error {
	user := GoogleDemoUser
	if err := b.persist(ctx, &user); err != nil {
		return err
	}
	browserFrom(ctx).Reload(ctx)
	return nil
}

// CompleteRedirect has nothing to complete in demo mode.
func (b *LocalBackend) CompleteRedirect(context.Context, string, string) error {
	return nil
}

func (b *LocalBackend) SignOut(ctx context.Context) error {
	if err := b.store.Remove(ctx, demoKey(ctx)); err != nil {
		b.log.Warn("failed to remove demo session", zap.Error(err))
	}
	return nil
}

func (b *LocalBackend) AccessToken(ctx context.Context) (string, bool) {
	_, ok, err := b.store.Get(ctx, demoKey(ctx))
	if err != nil {
		b.log.Debug("demo session lookup failed", zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	return DemoToken, true
}

func (b *LocalBackend) CurrentUser(ctx context.Context) *User {
	raw, ok, err := b.store.Get(ctx, demoKey(ctx))
	if err != nil {
		b.log.Debug("demo session lookup failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.Email == "" {
		b.log.Debug("ignoring unreadable demo session", zap.Error(err))
		return nil
	}
	return &user
}

func (b *LocalBackend) persist(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, demoKey(ctx), string(data))
}

func (b *LocalBackend) simulate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func demoKey(ctx context.Context) string {
	return identity.ScopedKey(ctx, DemoSessionKey)
}
