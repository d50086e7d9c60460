package auth

import (
	"context"
	"sync"
)

// Browser receives the page-level side effects of sign-in: leaving for the
// identity provider, or reloading so the app re-reads the session.
type Browser interface {
	Navigate(ctx context.Context, url string)
	Reload(ctx context.Context)
}

type browserKey struct{}

// WithBrowser attaches b to ctx for the facade call.
func WithBrowser(ctx context.Context, b Browser) context.Context {
	return context.WithValue(ctx, browserKey{}, b)
}

func browserFrom(ctx context.Context) Browser {
	if b, ok := ctx.Value(browserKey{}).(Browser); ok && b != nil {
		return b
	}
	return noopBrowser{}
}

type noopBrowser struct{}

func (noopBrowser) Navigate(context.Context, string) {}
func (noopBrowser) Reload(context.Context)           {}

// Navigation records what a facade call asked the browser to do, for HTTP
// handlers and the CLI to translate into a redirect or a reload hint.
type Navigation struct {
	mu       sync.Mutex
	target   string
	reloaded bool
}

func (n *Navigation) Navigate(_ context.Context, url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = url
}

func (n *Navigation) Reload(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloaded = true
}

// Target returns the URL passed to Navigate, if any.
func (n *Navigation) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

func (n *Navigation) Reloaded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reloaded
}
