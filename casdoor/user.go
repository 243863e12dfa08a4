package casdoor

import (
	"context"
	stdhttp "net/http"

	"github.com/go-kit/kit/transport/http"

	"github.com/casbinkit/guard"
	"github.com/casbinkit/guard/auth/jwt"
)

type contextKey string

const (
	// AccessTokenContextKey holds the access token read from its cookie.
	AccessTokenContextKey contextKey = "CasdoorAccessToken"
	// RefreshTokenContextKey holds the refresh token read from its cookie.
	RefreshTokenContextKey contextKey = "CasdoorRefreshToken"
)

// CookiesToContext moves the access and refresh tokens from the named
// cookies to the context.
func CookiesToContext(accessCookie, refreshCookie string) http.RequestFunc {
	return func(ctx context.Context, r *stdhttp.Request) context.Context {
		if c, err := r.Cookie(accessCookie); err == nil {
			ctx = context.WithValue(ctx, AccessTokenContextKey, c.Value)
		}
		if c, err := r.Cookie(refreshCookie); err == nil {
			ctx = context.WithValue(ctx, RefreshTokenContextKey, c.Value)
		}
		return ctx
	}
}

type userProvider struct {
	parser       *TokenParser
	unauthorized func() error
	invalid      func(reason string) error
}

// UserOption sets an optional parameter for the user provider.
type UserOption func(*userProvider)

// Unauthorized overrides the error returned when a cookie is missing.
func Unauthorized(f func() error) UserOption {
	return func(p *userProvider) { p.unauthorized = f }
}

// InvalidToken overrides the error returned when a token fails validation.
func InvalidToken(f func(reason string) error) UserOption {
	return func(p *userProvider) { p.invalid = f }
}

// NewUserProvider returns a resolver requiring both tokens placed in the
// context by CookiesToContext to be valid. The user is the raw access token,
// which is what Enforcer expects.
func NewUserProvider(parser *TokenParser, options ...UserOption) guard.Resolver {
	p := &userProvider{
		parser:       parser,
		unauthorized: jwt.UnauthorizedError,
		invalid:      jwt.InvalidTokenError,
	}
	for _, option := range options {
		option(p)
	}
	return p.resolve
}

func (p *userProvider) resolve(ctx context.Context, _ interface{}) (interface{}, error) {
	access, ok := ctx.Value(AccessTokenContextKey).(string)
	if !ok {
		return nil, p.unauthorized()
	}
	refresh, ok := ctx.Value(RefreshTokenContextKey).(string)
	if !ok {
		return nil, p.unauthorized()
	}
	for _, token := range []string{access, refresh} {
		if _, err := p.parser.Parse(token); err != nil {
			return nil, p.invalid(err.Error())
		}
	}
	return access, nil
}
