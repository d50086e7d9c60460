// Package cognito implements identity.Provider on an Amazon Cognito user pool.
//
// Password flows use the public user pool API (no AWS credentials needed).
// Federated sign-in goes through the pool's hosted UI when a domain is
// configured. The client owns the signed-in sessions: one per browser session
// id in the context, kept in a SessionCache and refreshed with the refresh
// token when the access token has expired.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/identity"
)

// expirySkew treats tokens this close to expiry as already expired.
const expirySkew = 30 * time.Second

// API is the subset of the Cognito user pool client this package calls.
type API interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// SessionCache holds sessions by key. Load returns nil when there is none.
type SessionCache interface {
	Save(ctx context.Context, key string, s *identity.Session) error
	Load(ctx context.Context, key string) (*identity.Session, error)
	Delete(ctx context.Context, key string) error
}

type Client struct {
	api        API
	clientID   string
	federation *Federation
	cache      SessionCache
	log        *zap.Logger
	now        func() time.Time

	// mu serializes refreshes so one refresh token is never spent twice.
	mu sync.Mutex
}

var _ identity.Provider = (*Client)(nil)

// New configures a client for the pool in cfg. It performs no network I/O.
// cache may be nil, in which case sessions live in memory only.
func New(ctx context.Context, cfg config.Auth, cache SessionCache, log *zap.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("cognito: load aws config: %w", err)
	}
	return NewWithAPI(ctx, cip.NewFromConfig(awsCfg), cfg, cache, log)
}

// NewWithAPI is New with an explicit user pool API.
func NewWithAPI(ctx context.Context, api API, cfg config.Auth, cache SessionCache, log *zap.Logger) (*Client, error) {
	if cache == nil {
		cache = newMemorySessions()
	}
	c := &Client{
		api:      api,
		clientID: cfg.ClientID,
		cache:    cache,
		log:      log.Named("cognito"),
		now:      time.Now,
	}

	if cfg.Federated() {
		fed, err := NewFederation(ctx, FederationConfig{
			Domain:          cfg.Domain,
			Region:          cfg.Region,
			UserPoolID:      cfg.UserPoolID,
			ClientID:        cfg.ClientID,
			RedirectSignIn:  cfg.RedirectSignIn,
			RedirectSignOut: cfg.RedirectSignOut,
		})
		if err != nil {
			return nil, err
		}
		c.federation = fed
	}
	return c, nil
}

func (c *Client) SignUp(ctx context.Context, username, password string, attributes map[string]string) error {
	attrs := make([]types.AttributeType, 0, len(attributes))
	for name, value := range attributes {
		attrs = append(attrs, types.AttributeType{Name: aws.String(name), Value: aws.String(value)})
	}

	_, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(c.clientID),
		Username:       aws.String(username),
		Password:       aws.String(password),
		UserAttributes: attrs,
	})
	return err
}

func (c *Client) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	return err
}

func (c *Client) Authenticate(ctx context.Context, username, password string) (*identity.Session, error) {
	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, err
	}

	switch out.ChallengeName {
	case "":
	case types.ChallengeNameTypeNewPasswordRequired:
		return nil, identity.ErrNewPasswordRequired
	default:
		return nil, fmt.Errorf("%w: %s", identity.ErrUnsupportedChallenge, out.ChallengeName)
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("%w: empty authentication result", identity.ErrUnsupportedChallenge)
	}

	sess := c.sessionFromResult(username, out.AuthenticationResult)
	c.store(ctx, sess)
	return sessionClone(sess), nil
}

// sessionKey identifies the session of the browser in ctx.
func (c *Client) sessionKey(ctx context.Context) string {
	return identity.ScopedKey(ctx, c.clientID)
}

// CurrentSession returns the session of the browser in ctx, refreshing it
// when the access token has expired.
func (c *Client) CurrentSession(ctx context.Context) (*identity.Session, error) {
	key := c.sessionKey(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.loadLocked(ctx, key)
	if sess == nil {
		return nil, identity.ErrNoSession
	}
	if sess.Valid(c.now().Add(expirySkew)) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		c.deleteCachedLocked(ctx, key)
		return nil, identity.ErrNoSession
	}

	refreshed, err := c.refreshLocked(ctx, key, sess)
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		if errors.As(err, &notAuthorized) {
			c.log.Info("refresh token rejected, clearing session")
			c.deleteCachedLocked(ctx, key)
			return nil, identity.ErrNoSession
		}
		return nil, fmt.Errorf("cognito: refresh session: %w", err)
	}
	return sessionClone(refreshed), nil
}

func (c *Client) loadLocked(ctx context.Context, key string) *identity.Session {
	sess, err := c.cache.Load(ctx, key)
	if err != nil {
		c.log.Warn("discarding unreadable cached session", zap.Error(err))
		c.deleteCachedLocked(ctx, key)
		return nil
	}
	return sess
}

func (c *Client) refreshLocked(ctx context.Context, key string, prev *identity.Session) (*identity.Session, error) {
	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": prev.RefreshToken,
		},
	})
	if err != nil {
		return nil, err
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("%w: %s", identity.ErrUnsupportedChallenge, out.ChallengeName)
	}

	sess := c.sessionFromResult(prev.Username, out.AuthenticationResult)
	if sess.RefreshToken == "" {
		sess.RefreshToken = prev.RefreshToken
	}
	c.saveCachedLocked(ctx, key, sess)
	return sess, nil
}

func (c *Client) UserAttributes(ctx context.Context, accessToken string) (map[string]string, error) {
	out, err := c.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]string, len(out.UserAttributes))
	for _, a := range out.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	return attrs, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	key := c.sessionKey(ctx)

	c.mu.Lock()
	prev := c.loadLocked(ctx, key)
	c.deleteCachedLocked(ctx, key)
	c.mu.Unlock()

	if prev == nil || prev.AccessToken == "" {
		return nil
	}
	if _, err := c.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(prev.AccessToken)}); err != nil {
		return fmt.Errorf("cognito: global sign out: %w", err)
	}
	return nil
}

// SignOutURL returns the hosted UI logout URL when federated sign-in is configured.
func (c *Client) SignOutURL() (string, bool) {
	if c.federation == nil {
		return "", false
	}
	return c.federation.LogoutURL(), true
}

func (c *Client) FederatedSignInURL(ctx context.Context, idp string) (string, error) {
	if c.federation == nil {
		return "", identity.ErrFederationDisabled
	}
	return c.federation.AuthURL(ctx, idp)
}

func (c *Client) CompleteFederatedSignIn(ctx context.Context, code, state string) (*identity.Session, error) {
	if c.federation == nil {
		return nil, identity.ErrFederationDisabled
	}
	sess, err := c.federation.Exchange(ctx, code, state)
	if err != nil {
		return nil, err
	}
	c.store(ctx, sess)
	return sessionClone(sess), nil
}

func (c *Client) store(ctx context.Context, sess *identity.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveCachedLocked(ctx, c.sessionKey(ctx), sess)
}

func (c *Client) saveCachedLocked(ctx context.Context, key string, sess *identity.Session) {
	if err := c.cache.Save(ctx, key, sess); err != nil {
		c.log.Warn("failed to persist session", zap.Error(err))
	}
}

func (c *Client) deleteCachedLocked(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.log.Warn("failed to delete persisted session", zap.Error(err))
	}
}

func (c *Client) sessionFromResult(username string, r *types.AuthenticationResultType) *identity.Session {
	sess := &identity.Session{
		Username:     username,
		AccessToken:  aws.ToString(r.AccessToken),
		IDToken:      aws.ToString(r.IdToken),
		RefreshToken: aws.ToString(r.RefreshToken),
		ExpiresAt:    c.now().Add(time.Duration(r.ExpiresIn) * time.Second),
	}
	if claims, err := identity.ParseClaims(sess.IDToken); err == nil && claims.Username != "" {
		sess.Username = claims.Username
	}
	return sess
}

func sessionClone(s *identity.Session) *identity.Session {
	cp := *s
	return &cp
}

// memorySessions is the SessionCache used when none is configured.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]*identity.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]*identity.Session)}
}

func (m *memorySessions) Save(_ context.Context, key string, s *identity.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = sessionClone(s)
	return nil
}

func (m *memorySessions) Load(_ context.Context, key string) (*identity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return sessionClone(s), nil
	}
	return nil, nil
}

func (m *memorySessions) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}
