package auth

import (
	"context"
	"time"

	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/entities"
)

// Query operations. They are observed for metrics but never audited.
const (
	OpCurrentUser entities.AuthOperation = "current_user"
	OpAccessToken entities.AuthOperation = "access_token"
)

// Event describes one completed facade call.
type Event struct {
	Operation entities.AuthOperation
	Mode      config.AuthMode
	Email     string
	Err       error
	// Found reports whether a query operation found a session.
	Found    bool
	Query    bool
	Duration time.Duration
	At       time.Time
}

// Observer is notified after every facade call. It must not block.
type Observer interface {
	ObserveAuth(ctx context.Context, e Event)
}

// Observe wraps a so every call is reported to observers. Results pass through unchanged.
func Observe(a Authenticator, observers ...Observer) Authenticator {
	if len(observers) == 0 {
		return a
	}
	return &observed{Authenticator: a, observers: observers, now: time.Now}
}

type observed struct {
	Authenticator
	observers []Observer
	now       func() time.Time
}

func (o *observed) emit(ctx context.Context, op entities.AuthOperation, email string, start time.Time, err error) {
	e := Event{
		Operation: op,
		Mode:      o.Mode(),
		Email:     email,
		Err:       err,
		Duration:  o.now().Sub(start),
		At:        start,
	}
	for _, obs := range o.observers {
		obs.ObserveAuth(ctx, e)
	}
}

func (o *observed) emitQuery(ctx context.Context, op entities.AuthOperation, found bool, start time.Time) {
	e := Event{
		Operation: op,
		Mode:      o.Mode(),
		Found:     found,
		Query:     true,
		Duration:  o.now().Sub(start),
		At:        start,
	}
	for _, obs := range o.observers {
		obs.ObserveAuth(ctx, e)
	}
}

func (o *observed) SignUp(ctx context.Context, email, password, name string) error {
	start := o.now()
	err := o.Authenticator.SignUp(ctx, email, password, name)
	o.emit(ctx, entities.AuthOpSignUp, email, start, err)
	return err
}

func (o *observed) ConfirmSignUp(ctx context.Context, email, code string) error {
	start := o.now()
	err := o.Authenticator.ConfirmSignUp(ctx, email, code)
	o.emit(ctx, entities.AuthOpConfirmSignUp, email, start, err)
	return err
}

func (o *observed) SignIn(ctx context.Context, email, password string) (*User, error) {
	start := o.now()
	user, err := o.Authenticator.SignIn(ctx, email, password)
	o.emit(ctx, entities.AuthOpSignIn, email, start, err)
	return user, err
}

func (o *observed) SignInWithGoogle(ctx context.Context) error {
	start := o.now()
	err := o.Authenticator.SignInWithGoogle(ctx)
	o.emit(ctx, entities.AuthOpSignInWithGoogle, "", start, err)
	return err
}

func (o *observed) CompleteRedirect(ctx context.Context, code, state string) error {
	start := o.now()
	err := o.Authenticator.CompleteRedirect(ctx, code, state)
	o.emit(ctx, entities.AuthOpCompleteRedirect, "", start, err)
	return err
}

func (o *observed) SignOut(ctx context.Context) error {
	start := o.now()
	err := o.Authenticator.SignOut(ctx)
	o.emit(ctx, entities.AuthOpSignOut, "", start, err)
	return err
}

func (o *observed) AccessToken(ctx context.Context) (string, bool) {
	start := o.now()
	token, ok := o.Authenticator.AccessToken(ctx)
	o.emitQuery(ctx, OpAccessToken, ok, start)
	return token, ok
}

func (o *observed) CurrentUser(ctx context.Context) *User {
	start := o.now()
	user := o.Authenticator.CurrentUser(ctx)
	o.emitQuery(ctx, OpCurrentUser, user != nil, start)
	return user
}
