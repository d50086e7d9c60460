package auth

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/identity"
)

// SessionCookieName names the browser session cookie.
const SessionCookieName = "nutrinani_session"

const (
	browserIDKey           = "browser_id"
	defaultSessionLifetime = 30 * 24 * time.Hour
)

// BrowserSessions gives every browser its own cookie session. The session
// carries a stable browser id that demo storage and the provider session
// cache are keyed by, so one browser never sees another's sign-in.
type BrowserSessions struct {
	*scs.SessionManager
}

// NewBrowserSessions creates a cookie session manager over store.
func NewBrowserSessions(store scs.Store, cfg config.Auth) *BrowserSessions {
	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = defaultSessionLifetime
	}

	sm := scs.New()
	sm.Store = store
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2
	sm.Cookie.Name = SessionCookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	// Lax so the hosted UI's top-level redirect back to /auth/callback carries it.
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true

	return &BrowserSessions{SessionManager: sm}
}

// BrowserID returns the id of the browser session loaded into ctx.
func (s *BrowserSessions) BrowserID(ctx context.Context) string {
	return s.GetString(ctx, browserIDKey)
}

// Renew issues a new cookie token for the current session. Call it whenever
// the signed-in principal changes so a planted cookie is not carried over.
func (s *BrowserSessions) Renew(ctx context.Context) error {
	return s.RenewToken(ctx)
}

// Middleware loads the browser's session, gives it an id on first use and
// scopes the request context to that id.
func (s *BrowserSessions) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if cookie, err := c.Request.Cookie(s.Cookie.Name); err == nil {
			token = cookie.Value
		}

		ctx, err := s.Load(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}

		id := s.BrowserID(ctx)
		if id == "" {
			id = uuid.NewString()
			s.Put(ctx, browserIDKey, id)
		}
		c.Request = c.Request.WithContext(identity.WithSessionID(ctx, id))

		srw := &sessionResponseWriter{
			ResponseWriter: c.Writer,
			sm:             s.SessionManager,
			request:        c.Request,
		}
		c.Writer = srw

		c.Next()

		if !srw.wroteHeader {
			srw.writeSessionCookie()
		}
	}
}

// sessionResponseWriter writes the session cookie before the first header
// leaves the process.
type sessionResponseWriter struct {
	gin.ResponseWriter
	sm            *scs.SessionManager
	request       *http.Request
	wroteHeader   bool
	cookieWritten bool
}

func (w *sessionResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.writeSessionCookie()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionResponseWriter) WriteHeaderNow() {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.writeSessionCookie()
	}
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.writeSessionCookie()
	}
	return w.ResponseWriter.Write(b)
}

func (w *sessionResponseWriter) writeSessionCookie() {
	if w.cookieWritten {
		return
	}
	w.cookieWritten = true

	ctx := w.request.Context()
	switch w.sm.Status(ctx) {
	case scs.Modified:
		token, expiry, err := w.sm.Commit(ctx)
		if err != nil {
			return
		}
		w.sm.WriteSessionCookie(ctx, w.ResponseWriter, token, expiry)
	case scs.Destroyed:
		w.sm.WriteSessionCookie(ctx, w.ResponseWriter, "", time.Time{})
	}
}

func (w *sessionResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.ResponseWriter.Hijack()
}
