package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenChecker(t *testing.T) {
	checker := TokenChecker{AdminToken: "s3cret"}

	tests := []struct {
		name    string
		ctx     context.Context
		wantErr bool
	}{
		{"no token", context.Background(), true},
		{"wrong token", WithToken(context.Background(), "nope"), true},
		{"empty token", WithToken(context.Background(), ""), true},
		{"matching token", WithToken(context.Background(), "s3cret"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checker.CheckAuth(tt.ctx)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotAuthenticated)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTokenChecker_EmptyAdminTokenRejectsEverybody(t *testing.T) {
	err := TokenChecker{}.CheckAuth(WithToken(context.Background(), ""))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGuard_Disabled(t *testing.T) {
	deny := CheckerFunc(func(context.Context) error { return ErrNotAuthenticated })

	assert.NoError(t, Guard(context.Background(), deny, true))
	assert.ErrorIs(t, Guard(context.Background(), deny, false), ErrNotAuthenticated)
	assert.NoError(t, Guard(context.Background(), nil, false))
}
