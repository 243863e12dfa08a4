package jwt

import (
	"context"
	stdhttp "net/http"
	"strings"

	"github.com/go-kit/kit/transport/http"
)

const bearer string = "bearer"

// HTTPToContext moves a JWT from the Authorization header to the context.
// A token already placed there by CookieToContext is kept.
func HTTPToContext() http.RequestFunc {
	return func(ctx context.Context, r *stdhttp.Request) context.Context {
		if _, ok := ctx.Value(JWTContextKey).(string); ok {
			return ctx
		}
		token, ok := extractTokenFromAuthHeader(r.Header.Get("Authorization"))
		if !ok {
			return ctx
		}
		return context.WithValue(ctx, JWTContextKey, token)
	}
}

// CookieToContext moves a JWT from the named cookie to the context. It takes
// precedence over a bearer token, whichever runs first.
func CookieToContext(name string) http.RequestFunc {
	return func(ctx context.Context, r *stdhttp.Request) context.Context {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return ctx
		}
		return context.WithValue(ctx, JWTContextKey, c.Value)
	}
}

// ContextToHTTP moves a JWT from the context to the Authorization header.
// Particularly useful for clients.
func ContextToHTTP() http.RequestFunc {
	return func(ctx context.Context, r *stdhttp.Request) context.Context {
		token, ok := ctx.Value(JWTContextKey).(string)
		if ok {
			r.Header.Set("Authorization", generateAuthHeaderFromToken(token))
		}
		return ctx
	}
}

func extractTokenFromAuthHeader(val string) (token string, ok bool) {
	authHeaderParts := strings.Split(val, " ")
	if len(authHeaderParts) != 2 || !strings.EqualFold(authHeaderParts[0], bearer) {
		return "", false
	}
	return authHeaderParts[1], true
}

func generateAuthHeaderFromToken(token string) string {
	return "Bearer " + token
}
