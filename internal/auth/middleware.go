package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyUser holds the *User resolved for the request, or nil.
const ContextKeyUser = "auth_user"

// Middleware resolves the signed-in user for routes that need it.
type Middleware struct {
	auth Authenticator
}

func NewMiddleware(a Authenticator) *Middleware {
	return &Middleware{auth: a}
}

// Handler stores the current user, if any, in the gin context.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyUser, m.auth.CurrentUser(c.Request.Context()))
		c.Next()
	}
}

// RequireUser rejects requests without a signed-in user. Run after Handler.
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Next()
	}
}

// GetUser returns the user stored by Handler.
func GetUser(c *gin.Context) *User {
	if v, ok := c.Get(ContextKeyUser); ok {
		if u, ok := v.(*User); ok {
			return u
		}
	}
	return nil
}
