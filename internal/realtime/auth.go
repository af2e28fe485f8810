package realtime

import (
	"context"
	"strings"
)

// Authenticator resolves a bearer token to the principal name that private
// destinations are addressed by.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (string, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// value. The scheme match is case-insensitive.
func bearerToken(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if len(value) < 7 || !strings.EqualFold(value[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(value[7:])
	return token, token != ""
}
