package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/cognito"
	"github.com/nutrinani/nutrinani/internal/identity"
	"github.com/nutrinani/nutrinani/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(a Authenticator, limiter *SignInLimiter) *gin.Engine {
	router := gin.New()
	NewController(a, limiter, nil, zap.NewNop()).RegisterRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/dashboard", true},
		{"/recipes?id=1", true},
		{"", false},
		{"dashboard", false},
		{"//evil.com", false},
		{"/\\evil.com", false},
		{"https://evil.com", false},
		{"/redirect?to=https://evil.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isLocalPath(tt.path), tt.path)
	}
	assert.Equal(t, "/", sanitizeRedirectPath("//evil.com"))
	assert.Equal(t, "/scanner", sanitizeRedirectPath("/scanner"))
}

func TestController_DemoFlow(t *testing.T) {
	router := setupRouter(NewLocalBackend(storage.NewMemoryStore(), 0, zap.NewNop()), nil)

	w := doJSON(router, http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["authenticated"])
	assert.Nil(t, body["user"])
	assert.Equal(t, "demo", body["mode"])

	w = doJSON(router, http.MethodGet, "/auth/token", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":null}`, w.Body.String())

	w = doJSON(router, http.MethodPost, "/auth/signup", `{"email":"maria@example.com","password":"pw","name":"Maria"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/confirm", `{"email":"maria@example.com","code":"123456"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/signin", `{"email":"maria@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":{"email":"maria@example.com","name":"maria"}}`, w.Body.String())

	w = doJSON(router, http.MethodGet, "/auth/token", "")
	assert.JSONEq(t, `{"token":"demo-jwt-token"}`, w.Body.String())

	w = doJSON(router, http.MethodGet, "/auth/me", "")
	body = decode(t, w)
	assert.Equal(t, true, body["authenticated"])

	w = doJSON(router, http.MethodPost, "/auth/signout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/auth/me", "")
	assert.Equal(t, false, decode(t, w)["authenticated"])
}

func TestController_ValidationErrors(t *testing.T) {
	router := setupRouter(NewLocalBackend(storage.NewMemoryStore(), 0, zap.NewNop()), nil)

	w := doJSON(router, http.MethodPost, "/auth/signin", `{"email":"","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrEmailRequired.Error(), decode(t, w)["error"])

	w = doJSON(router, http.MethodPost, "/auth/confirm", `{"email":"a@b.c"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/signup", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestController_FormSignIn(t *testing.T) {
	router := setupRouter(NewLocalBackend(storage.NewMemoryStore(), 0, zap.NewNop()), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader("email=f%40example.com&password=pw"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "f@example.com")
}

func TestController_GoogleDemo(t *testing.T) {
	router := setupRouter(NewLocalBackend(storage.NewMemoryStore(), 0, zap.NewNop()), nil)

	w := doJSON(router, http.MethodPost, "/auth/google", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reload":true}`, w.Body.String())

	w = doJSON(router, http.MethodGet, "/auth/google?next=/recipes", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/recipes", w.Header().Get("Location"))

	w = doJSON(router, http.MethodGet, "/auth/google?next=//evil.com", "")
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = doJSON(router, http.MethodGet, "/auth/me", "")
	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, GoogleDemoUser.Email, user["email"])
}

func TestController_SignInFailureIs401(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "NotAuthorizedException", Message: "Incorrect username or password."}
	router := setupRouter(NewRemoteBackend(&fakeProvider{authErr: apiErr}, zap.NewNop()), nil)

	w := doJSON(router, http.MethodPost, "/auth/signin", `{"email":"a@b.c","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Incorrect username or password.","code":"NotAuthorizedException"}`, w.Body.String())
}

func TestController_SignInRateLimited(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "NotAuthorizedException", Message: "Incorrect username or password."}
	limiter := NewSignInLimiter(RateLimitConfig{MaxAttempts: 2, Window: time.Minute})
	router := setupRouter(NewRemoteBackend(&fakeProvider{authErr: apiErr}, zap.NewNop()), limiter)

	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodPost, "/auth/signin", `{"email":"a@b.c","password":"bad"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := doJSON(router, http.MethodPost, "/auth/signin", `{"email":"A@b.c","password":"bad"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestController_GoogleProductionRedirects(t *testing.T) {
	p := &fakeProvider{fedURL: "https://auth.example.com/oauth2/authorize"}
	router := setupRouter(NewRemoteBackend(p, zap.NewNop()), nil)

	w := doJSON(router, http.MethodGet, "/auth/google", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://auth.example.com/oauth2/authorize?identity_provider=Google", w.Header().Get("Location"))

	w = doJSON(router, http.MethodPost, "/auth/google", "")
	assert.JSONEq(t, `{"redirect":"https://auth.example.com/oauth2/authorize?identity_provider=Google"}`, w.Body.String())
}

func TestController_GoogleDisabled(t *testing.T) {
	router := setupRouter(NewRemoteBackend(&fakeProvider{fedErr: identity.ErrFederationDisabled}, zap.NewNop()), nil)

	w := doJSON(router, http.MethodPost, "/auth/google", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestController_GoogleBusy(t *testing.T) {
	router := setupRouter(NewRemoteBackend(&fakeProvider{fedErr: cognito.ErrTooManyPending}, zap.NewNop()), nil)

	w := doJSON(router, http.MethodPost, "/auth/google", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestController_Callback(t *testing.T) {
	p := &fakeProvider{attrs: map[string]string{"email": "g@example.com"}}
	router := setupRouter(NewRemoteBackend(p, zap.NewNop()), nil)

	w := doJSON(router, http.MethodGet, "/auth/callback", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/auth/callback?code=abc&state=bad", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/?auth_error=sign_in_failed", w.Header().Get("Location"))

	w = doJSON(router, http.MethodGet, "/auth/callback?error=access_denied", "")
	assert.Equal(t, "/?auth_error=access_denied", w.Header().Get("Location"))

	// The hosted UI returns to the origin root by default.
	w = doJSON(router, http.MethodGet, "/?code=abc&state=good", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = doJSON(router, http.MethodGet, "/auth/token", "")
	assert.JSONEq(t, `{"token":"fed-abc"}`, w.Body.String())
}

func TestController_Index(t *testing.T) {
	router := setupRouter(NewLocalBackend(storage.NewMemoryStore(), 0, zap.NewNop()), nil)

	w := doJSON(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"service":"nutrinani","auth_mode":"demo"}`, w.Body.String())
}

func TestController_SignOutRedirectsToHostedLogout(t *testing.T) {
	p := redirectingProvider{&fakeProvider{signOutURL: "https://auth.example.com/logout"}}
	router := setupRouter(NewRemoteBackend(p, zap.NewNop()), nil)

	w := doJSON(router, http.MethodGet, "/auth/signout", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://auth.example.com/logout", w.Header().Get("Location"))

	w = doJSON(router, http.MethodPost, "/auth/signout", "")
	assert.JSONEq(t, `{"redirect":"https://auth.example.com/logout"}`, w.Body.String())
}
