// Package auth identifies the user on whose behalf log operations run.
//
// The sync daemon serves a single authenticated user per request; the
// CLI runs as one configured user. Both are expressed through the
// Provider interface so the log repository stays agnostic of where the
// identity came from.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when an operation requires a user and
// none is available.
var ErrUnauthenticated = errors.New("not authenticated")

// User is an authenticated identity.
type User struct {
	// ID is the stable user identifier all logs are keyed by.
	ID string

	// Email of the user, when the identity source supplies one.
	Email string

	// Name is the display name, when available.
	Name string
}

// Provider resolves the current user for an operation.
type Provider interface {
	// CurrentUser returns the authenticated user, or
	// ErrUnauthenticated when there is none.
	CurrentUser(ctx context.Context) (*User, error)
}

// StaticProvider always returns one fixed user. Used by the CLI, where
// the user is configured rather than authenticated per request.
type StaticProvider struct {
	User *User
}

// CurrentUser returns the configured user.
func (p *StaticProvider) CurrentUser(ctx context.Context) (*User, error) {
	if p.User == nil || p.User.ID == "" {
		return nil, ErrUnauthenticated
	}
	return p.User, nil
}

type contextKey struct{}

// WithUser returns a context carrying the given user.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFrom extracts the user from a context, if any.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey{}).(*User)
	return u, ok && u != nil
}

// ContextProvider resolves the user from the request context. Used by
// the HTTP surface, where middleware attaches the verified identity.
type ContextProvider struct{}

// CurrentUser returns the user attached to ctx, or ErrUnauthenticated.
func (ContextProvider) CurrentUser(ctx context.Context) (*User, error) {
	u, ok := UserFrom(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return u, nil
}
