package auth

import (
	"errors"
	"strings"
)

var (
	// ErrSignInFailed wraps every production sign-in failure.
	ErrSignInFailed = errors.New("sign in failed")

	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrCodeRequired     = errors.New("verification code is required")
)

// User is the signed-in principal. ID is only set by the identity provider.
type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// localPart returns the part of an email before "@".
func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return nil
}
