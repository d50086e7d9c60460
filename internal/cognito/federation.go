package cognito

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/nutrinani/nutrinani/internal/identity"
)

// Scopes requested from the hosted UI.
var Scopes = []string{oidc.ScopeOpenID, "email", "profile"}

const (
	// pendingTTL bounds how long a started redirect may take to come back.
	pendingTTL = 10 * time.Minute
	// maxPending caps redirects in flight across all browsers.
	maxPending = 1024
)

// ErrTooManyPending is returned by AuthURL while maxPending redirects are in flight.
var ErrTooManyPending = errors.New("cognito: too many sign-in redirects in progress")

type FederationConfig struct {
	Domain          string // Hosted UI domain, with or without scheme
	Region          string
	UserPoolID      string
	ClientID        string
	RedirectSignIn  string
	RedirectSignOut string

	// KeySet verifies ID token signatures. Defaults to the pool's remote JWKS.
	KeySet oidc.KeySet
	// Issuer overrides the pool issuer URL.
	Issuer string
}

type pending struct {
	verifier  string
	nonce     string
	sessionID string
	createdAt time.Time
}

// Federation runs the hosted UI authorization code flow with PKCE.
type Federation struct {
	oauth     *oauth2.Config
	verifier  *oidc.IDTokenVerifier
	logoutURL string
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]pending
	// bySession maps a browser session id to its one pending state.
	bySession map[string]string
}

func hostedBaseURL(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// NewFederation builds the flow without contacting the provider. Signing keys
// are fetched on first verification.
func NewFederation(ctx context.Context, cfg FederationConfig) (*Federation, error) {
	if cfg.Domain == "" || cfg.ClientID == "" || cfg.RedirectSignIn == "" {
		return nil, errors.New("cognito: federation requires domain, client id and redirect url")
	}

	base := hostedBaseURL(cfg.Domain)
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", cfg.Region, cfg.UserPoolID)
	}
	keySet := cfg.KeySet
	if keySet == nil {
		keySet = oidc.NewRemoteKeySet(context.WithoutCancel(ctx), issuer+"/.well-known/jwks.json")
	}

	logout := url.Values{}
	logout.Set("client_id", cfg.ClientID)
	logout.Set("logout_uri", cfg.RedirectSignOut)

	return &Federation{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectSignIn,
			Scopes:      Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier:  oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: cfg.ClientID}),
		logoutURL: base + "/logout?" + logout.Encode(),
		now:       time.Now,
		pending:   make(map[string]pending),
		bySession: make(map[string]string),
	}, nil
}

// AuthURL starts a redirect through idp for the browser session in ctx. A
// browser has at most one redirect in flight; starting another replaces it.
func (f *Federation) AuthURL(ctx context.Context, idp string) (string, error) {
	state, err := randomString(32)
	if err != nil {
		return "", err
	}
	p := pending{
		verifier:  oauth2.GenerateVerifier(),
		nonce:     uuid.NewString(),
		sessionID: identity.SessionID(ctx),
		createdAt: f.now(),
	}

	f.mu.Lock()
	f.pruneLocked()
	if prev, ok := f.bySession[p.sessionID]; ok {
		delete(f.pending, prev)
	}
	if len(f.pending) >= maxPending {
		f.mu.Unlock()
		return "", ErrTooManyPending
	}
	f.pending[state] = p
	f.bySession[p.sessionID] = state
	f.mu.Unlock()

	return f.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(p.verifier),
		oidc.Nonce(p.nonce),
		oauth2.SetAuthURLParam("identity_provider", idp),
	), nil
}

// Exchange trades the returned code for tokens and verifies the ID token.
// The state must have been issued to the same browser session.
func (f *Federation) Exchange(ctx context.Context, code, state string) (*identity.Session, error) {
	f.mu.Lock()
	p, ok := f.pending[state]
	if !ok || p.sessionID != identity.SessionID(ctx) {
		f.mu.Unlock()
		return nil, identity.ErrInvalidState
	}
	f.removeLocked(state, p)
	f.mu.Unlock()
	if f.now().Sub(p.createdAt) > pendingTTL {
		return nil, identity.ErrInvalidState
	}

	tok, err := f.oauth.Exchange(ctx, code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		return nil, fmt.Errorf("cognito: exchange code: %w", err)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, errors.New("cognito: token response has no id_token")
	}

	idToken, err := f.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("cognito: verify id token: %w", err)
	}
	if idToken.Nonce != p.nonce {
		return nil, errors.New("cognito: id token nonce mismatch")
	}

	var claims struct {
		Username string `json:"cognito:username"`
		Email    string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("cognito: decode id token claims: %w", err)
	}
	username := claims.Username
	if username == "" {
		username = claims.Email
	}

	return &identity.Session{
		Username:     username,
		AccessToken:  tok.AccessToken,
		IDToken:      rawID,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

func (f *Federation) LogoutURL() string {
	return f.logoutURL
}

func (f *Federation) pruneLocked() {
	now := f.now()
	for state, p := range f.pending {
		if now.Sub(p.createdAt) > pendingTTL {
			f.removeLocked(state, p)
		}
	}
}

func (f *Federation) removeLocked(state string, p pending) {
	delete(f.pending, state)
	if f.bySession[p.sessionID] == state {
		delete(f.bySession, p.sessionID)
	}
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cognito: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
