package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrNotAuthenticated is returned by a Checker when the caller is anonymous
// or presents the wrong credentials.
var ErrNotAuthenticated = errors.New("not authenticated")

// Checker guards controllers. Controllers call it unless authentication is
// disabled for the call.
type Checker interface {
	CheckAuth(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) CheckAuth(ctx context.Context) error { return f(ctx) }

// Allow accepts every caller.
var Allow Checker = CheckerFunc(func(context.Context) error { return nil })

type ctxKey string

const ctxToken ctxKey = "auth_token"

// WithToken stores the credentials presented by the caller.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxToken, token)
}

// Token returns the credentials stored by WithToken.
func Token(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxToken).(string)
	return v, ok && v != ""
}

// TokenChecker accepts callers whose token matches the admin token.
// An empty admin token rejects everybody.
type TokenChecker struct {
	AdminToken string
}

func (c TokenChecker) CheckAuth(ctx context.Context) error {
	if c.AdminToken == "" {
		return ErrNotAuthenticated
	}
	token, ok := Token(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.AdminToken)) != 1 {
		return ErrNotAuthenticated
	}
	return nil
}

// Guard runs the checker unless disabled.
func Guard(ctx context.Context, c Checker, disabled bool) error {
	if disabled || c == nil {
		return nil
	}
	return c.CheckAuth(ctx)
}
