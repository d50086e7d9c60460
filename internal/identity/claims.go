package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("identity: malformed token")

// Claims are the identity claims the facade cares about.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Username  string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"cognito:username"`
	jwt.RegisteredClaims
}

// ParseClaims reads claims from a token without verifying its signature. It
// is only used on tokens received directly from the provider over TLS.
func ParseClaims(raw string) (*Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &tc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	c := &Claims{
		Subject:  tc.Subject,
		Email:    tc.Email,
		Name:     tc.Name,
		Username: tc.Username,
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
