package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/cognito"
	"github.com/nutrinani/nutrinani/internal/identity"
)

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	// Protocol-relative URLs (//evil.com), schemes and backslash tricks
	if strings.HasPrefix(path, "//") || strings.Contains(path, "://") || strings.Contains(path, "\\") {
		return false
	}
	return true
}

// sanitizeRedirectPath returns a safe redirect path, defaulting to "/" if invalid.
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/"
}

type credentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
}

type confirmRequest struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"code" form:"code"`
}

// Controller exposes the facade over HTTP.
type Controller struct {
	auth     Authenticator
	limiter  *SignInLimiter
	sessions *BrowserSessions
	log      *zap.Logger
}

// NewController creates the auth controller. sessions may be nil when the
// routes are not behind BrowserSessions.Middleware.
func NewController(a Authenticator, limiter *SignInLimiter, sessions *BrowserSessions, log *zap.Logger) *Controller {
	return &Controller{auth: a, limiter: limiter, sessions: sessions, log: log.Named("auth.http")}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *Controller) RegisterRoutes(router gin.IRouter) {
	router.GET("/", ac.Index)

	g := router.Group("/auth")
	g.POST("/signup", ac.SignUp)
	g.POST("/confirm", ac.ConfirmSignUp)
	g.POST("/signin", ac.SignIn)
	g.GET("/google", ac.SignInWithGoogle)
	g.POST("/google", ac.SignInWithGoogle)
	g.POST("/signout", ac.SignOut)
	g.GET("/signout", ac.SignOut) // Support GET for simple sign-out links
	g.GET("/me", ac.Me)
	g.GET("/token", ac.Token)
	g.GET("/callback", ac.Callback)
}

// Index doubles as the hosted UI's return address, which defaults to the origin root.
func (ac *Controller) Index(c *gin.Context) {
	if c.Query("code") != "" || c.Query("error") != "" {
		ac.Callback(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service":   "nutrinani",
		"auth_mode": ac.auth.Mode(),
	})
}

func (ac *Controller) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := ac.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Name); err != nil {
		ac.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

func (ac *Controller) ConfirmSignUp(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := ac.auth.ConfirmSignUp(c.Request.Context(), req.Email, req.Code); err != nil {
		ac.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (ac *Controller) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	key := signInKey(c.ClientIP(), strings.ToLower(strings.TrimSpace(req.Email)))
	if ac.limiter != nil && !ac.limiter.Allow(key) {
		c.Header("Retry-After", strconv.Itoa(int(ac.limiter.RetryAfter().Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many sign-in attempts, please try again later"})
		return
	}

	user, err := ac.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrSignInFailed) {
			status = http.StatusUnauthorized
		}
		ac.fail(c, status, err)
		return
	}

	if ac.limiter != nil {
		ac.limiter.Reset(key)
	}
	ac.renewSession(c)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// SignInWithGoogle answers GET with a redirect and POST with JSON describing
// what the page should do next.
func (ac *Controller) SignInWithGoogle(c *gin.Context) {
	nav := &Navigation{}
	ctx := WithBrowser(c.Request.Context(), nav)

	if err := ac.auth.SignInWithGoogle(ctx); err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, identity.ErrFederationDisabled):
			status = http.StatusNotImplemented
		case errors.Is(err, cognito.ErrTooManyPending):
			status = http.StatusServiceUnavailable
		}
		ac.fail(c, status, err)
		return
	}
	if nav.Reloaded() {
		// Demo mode signed the browser in without leaving the page.
		ac.renewSession(c)
	}
	ac.respondNavigation(c, nav, http.StatusOK)
}

func (ac *Controller) SignOut(c *gin.Context) {
	nav := &Navigation{}
	ctx := WithBrowser(c.Request.Context(), nav)

	_ = ac.auth.SignOut(ctx)
	ac.renewSession(c)
	ac.respondNavigation(c, nav, http.StatusNoContent)
}

func (ac *Controller) Me(c *gin.Context) {
	user := ac.auth.CurrentUser(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"authenticated": user != nil,
		"user":          user,
		"mode":          ac.auth.Mode(),
	})
}

func (ac *Controller) Token(c *gin.Context) {
	token, ok := ac.auth.AccessToken(c.Request.Context())
	if !ok {
		c.JSON(http.StatusOK, gin.H{"token": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Callback completes a hosted UI redirect and sends the browser back to the app.
func (ac *Controller) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		ac.log.Warn("federated sign-in returned an error",
			zap.String("error", e),
			zap.String("description", c.Query("error_description")),
		)
		c.Redirect(http.StatusFound, "/?auth_error="+url.QueryEscape(e))
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
		return
	}

	if err := ac.auth.CompleteRedirect(c.Request.Context(), code, state); err != nil {
		ac.log.Warn("failed to complete federated sign-in", zap.Error(err))
		c.Redirect(http.StatusFound, "/?auth_error=sign_in_failed")
		return
	}
	ac.renewSession(c)
	c.Redirect(http.StatusFound, "/")
}

// renewSession rotates the browser's cookie token after the principal changes.
func (ac *Controller) renewSession(c *gin.Context) {
	if ac.sessions == nil || ac.sessions.BrowserID(c.Request.Context()) == "" {
		return
	}
	if err := ac.sessions.Renew(c.Request.Context()); err != nil {
		ac.log.Warn("failed to renew browser session", zap.Error(err))
	}
}

func (ac *Controller) respondNavigation(c *gin.Context, nav *Navigation, emptyStatus int) {
	next := sanitizeRedirectPath(c.Query("next"))
	isGet := c.Request.Method == http.MethodGet

	switch {
	case nav.Target() != "":
		if isGet {
			c.Redirect(http.StatusFound, nav.Target())
			return
		}
		c.JSON(http.StatusOK, gin.H{"redirect": nav.Target()})
	case nav.Reloaded():
		if isGet {
			c.Redirect(http.StatusFound, next)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reload": true})
	default:
		if isGet {
			c.Redirect(http.StatusFound, next)
			return
		}
		c.Status(emptyStatus)
	}
}

func (ac *Controller) fail(c *gin.Context, status int, err error) {
	if errors.Is(err, context.Canceled) {
		c.Status(499)
		return
	}
	body := gin.H{"error": ErrorMessage(err)}
	if code := ErrorCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}
