package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"

	"github.com/nutrinani/nutrinani/internal/config"
)

// CSRFTokenHeader carries the token to the UI on every response and back on unsafe requests.
const CSRFTokenHeader = "X-CSRF-Token"

// CSRFMiddleware protects cookie-authenticated form posts. In production
// mode requests that present the browser's current bearer token skip the
// check: a cross-site page cannot know it. The demo token is a public
// constant, so demo mode always checks.
func CSRFMiddleware(secret []byte, secure bool, a Authenticator) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if hasCurrentBearer(c, a) {
			c.Next()
			return
		}

		r := c.Request
		if !secure {
			r = csrf.PlaintextHTTPRequest(r)
		}

		passed := false
		handler := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Header(CSRFTokenHeader, csrf.Token(r))
			c.Request = r
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, r)
		if !passed {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing"}`))
}

func hasCurrentBearer(c *gin.Context, a Authenticator) bool {
	if a.Mode() == config.AuthModeDemo {
		return false
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return false
	}
	presented := strings.TrimSpace(header[len("bearer "):])
	if presented == "" {
		return false
	}
	current, ok := a.AccessToken(c.Request.Context())
	return ok && current == presented
}
