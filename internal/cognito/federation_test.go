package cognito

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrinani/nutrinani/internal/identity"
)

const testIssuer = "https://cognito-idp.ap-south-1.amazonaws.com/ap-south-1_pool"

type hostedUI struct {
	server  *httptest.Server
	key     *rsa.PrivateKey
	nonce   string
	lastReq url.Values
}

func newHostedUI(t *testing.T) *hostedUI {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	h := &hostedUI{key: key}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/token", r.URL.Path)
		_ = r.ParseForm()
		h.lastReq = r.PostForm

		idTok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":              testIssuer,
			"aud":              "client-1",
			"sub":              "u-1",
			"email":            "a@gmail.com",
			"cognito:username": "Google_123",
			"nonce":            h.nonce,
			"exp":              time.Now().Add(time.Hour).Unix(),
			"iat":              time.Now().Unix(),
		}).SignedString(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-fed",
			"id_token":      idTok,
			"refresh_token": "refresh-fed",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(h.server.Close)
	return h
}

func newTestFederation(t *testing.T, h *hostedUI) *Federation {
	t.Helper()
	f, err := NewFederation(context.Background(), FederationConfig{
		Domain:          h.server.URL,
		Region:          "ap-south-1",
		UserPoolID:      "ap-south-1_pool",
		ClientID:        "client-1",
		RedirectSignIn:  "http://localhost:8188/",
		RedirectSignOut: "http://localhost:8188/",
		KeySet:          &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&h.key.PublicKey}},
	})
	require.NoError(t, err)
	return f
}

func TestFederation_AuthURL(t *testing.T) {
	h := newHostedUI(t)
	f := newTestFederation(t, h)

	raw, err := f.AuthURL(context.Background(), identity.GoogleProvider)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/oauth2/authorize", u.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "Google", q.Get("identity_provider"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEmpty(t, q.Get("nonce"))
	assert.Equal(t, "http://localhost:8188/", q.Get("redirect_uri"))
	assert.NotEmpty(t, q.Get("state"))
}

func TestFederation_Exchange(t *testing.T) {
	h := newHostedUI(t)
	f := newTestFederation(t, h)

	raw, err := f.AuthURL(context.Background(), identity.GoogleProvider)
	require.NoError(t, err)
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")
	h.nonce = u.Query().Get("nonce")

	sess, err := f.Exchange(context.Background(), "auth-code", state)
	require.NoError(t, err)
	assert.Equal(t, "access-fed", sess.AccessToken)
	assert.Equal(t, "refresh-fed", sess.RefreshToken)
	assert.Equal(t, "Google_123", sess.Username)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	assert.Equal(t, "auth-code", h.lastReq.Get("code"))
	assert.Equal(t, "client-1", h.lastReq.Get("client_id"))
	assert.NotEmpty(t, h.lastReq.Get("code_verifier"))

	_, err = f.Exchange(context.Background(), "auth-code", state)
	assert.ErrorIs(t, err, identity.ErrInvalidState, "state is single use")
}

func TestFederation_ExchangeRejects(t *testing.T) {
	t.Run("unknown state", func(t *testing.T) {
		f := newTestFederation(t, newHostedUI(t))
		_, err := f.Exchange(context.Background(), "code", "forged")
		assert.ErrorIs(t, err, identity.ErrInvalidState)
	})

	t.Run("expired state", func(t *testing.T) {
		f := newTestFederation(t, newHostedUI(t))
		raw, err := f.AuthURL(context.Background(), identity.GoogleProvider)
		require.NoError(t, err)
		u, _ := url.Parse(raw)

		f.now = func() time.Time { return time.Now().Add(pendingTTL + time.Minute) }
		_, err = f.Exchange(context.Background(), "code", u.Query().Get("state"))
		assert.ErrorIs(t, err, identity.ErrInvalidState)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		h := newHostedUI(t)
		f := newTestFederation(t, h)
		raw, err := f.AuthURL(context.Background(), identity.GoogleProvider)
		require.NoError(t, err)
		u, _ := url.Parse(raw)
		h.nonce = "replayed"

		_, err = f.Exchange(context.Background(), "code", u.Query().Get("state"))
		assert.ErrorContains(t, err, "nonce")
	})
}

func stateOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestFederation_StateBoundToBrowserSession(t *testing.T) {
	h := newHostedUI(t)
	f := newTestFederation(t, h)
	victim := identity.WithSessionID(context.Background(), "browser-victim")
	attacker := identity.WithSessionID(context.Background(), "browser-attacker")

	raw, err := f.AuthURL(attacker, identity.GoogleProvider)
	require.NoError(t, err)
	u, _ := url.Parse(raw)
	h.nonce = u.Query().Get("nonce")

	_, err = f.Exchange(victim, "attacker-code", u.Query().Get("state"))
	assert.ErrorIs(t, err, identity.ErrInvalidState)

	sess, err := f.Exchange(attacker, "attacker-code", u.Query().Get("state"))
	require.NoError(t, err, "a foreign browser must not consume the state")
	assert.Equal(t, "access-fed", sess.AccessToken)
}

func TestFederation_OnePendingPerBrowser(t *testing.T) {
	f := newTestFederation(t, newHostedUI(t))
	ctx := identity.WithSessionID(context.Background(), "browser-1")

	first, err := f.AuthURL(ctx, identity.GoogleProvider)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.AuthURL(ctx, identity.GoogleProvider)
		require.NoError(t, err)
	}

	assert.Len(t, f.pending, 1)
	_, err = f.Exchange(ctx, "code", stateOf(t, first))
	assert.ErrorIs(t, err, identity.ErrInvalidState, "replaced state is gone")
}

func TestFederation_PendingCapped(t *testing.T) {
	f := newTestFederation(t, newHostedUI(t))

	for i := 0; i < maxPending; i++ {
		ctx := identity.WithSessionID(context.Background(), fmt.Sprintf("browser-%d", i))
		_, err := f.AuthURL(ctx, identity.GoogleProvider)
		require.NoError(t, err)
	}

	_, err := f.AuthURL(identity.WithSessionID(context.Background(), "one-more"), identity.GoogleProvider)
	assert.ErrorIs(t, err, ErrTooManyPending)
	assert.Len(t, f.pending, maxPending)

	f.now = func() time.Time { return time.Now().Add(pendingTTL + time.Minute) }
	_, err = f.AuthURL(identity.WithSessionID(context.Background(), "one-more"), identity.GoogleProvider)
	require.NoError(t, err, "expired redirects free their slots")
	assert.Len(t, f.pending, 1)
}

func TestFederation_LogoutURL(t *testing.T) {
	f := newTestFederation(t, newHostedUI(t))
	u, err := url.Parse(f.LogoutURL())
	require.NoError(t, err)
	assert.Equal(t, "/logout", u.Path)
	assert.Equal(t, "client-1", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:8188/", u.Query().Get("logout_uri"))
}

func TestHostedBaseURL(t *testing.T) {
	assert.Equal(t, "https://nutrinani.auth.ap-south-1.amazoncognito.com", hostedBaseURL("nutrinani.auth.ap-south-1.amazoncognito.com"))
	assert.Equal(t, "http://127.0.0.1:9000", hostedBaseURL("http://127.0.0.1:9000/"))
}
