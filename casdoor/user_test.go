package casdoor_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casbinkit/guard/auth/jwt"
	"github.com/casbinkit/guard/casdoor"
)

func TestCookiesToContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: "at", Value: "access"})

	ctx := casdoor.CookiesToContext("at", "rt")(context.Background(), r)
	if have := ctx.Value(casdoor.AccessTokenContextKey); have != "access" {
		t.Errorf("want access, have %v", have)
	}
	if have := ctx.Value(casdoor.RefreshTokenContextKey); have != nil {
		t.Errorf("want no refresh token, have %v", have)
	}
}

func TestUserProvider(t *testing.T) {
	iss := newIssuer(t)
	parser, err := casdoor.NewTokenParser(iss.cert, clientID)
	if err != nil {
		t.Fatal(err)
	}
	provider := casdoor.NewUserProvider(parser)

	access, refresh := iss.token(t, "org", "alice", nil), iss.token(t, "org", "alice", map[string]interface{}{"typ": "refresh"})
	withTokens := func(access, refresh string) context.Context {
		ctx := context.Background()
		if access != "" {
			ctx = context.WithValue(ctx, casdoor.AccessTokenContextKey, access)
		}
		if refresh != "" {
			ctx = context.WithValue(ctx, casdoor.RefreshTokenContextKey, refresh)
		}
		return ctx
	}

	user, err := provider(withTokens(access, refresh), nil)
	if err != nil {
		t.Fatal(err)
	}
	if user != access {
		t.Errorf("want the access token as user, have %v", user)
	}

	for _, tc := range []struct {
		name, access, refresh, want string
	}{
		{"no cookies", "", "", "Not authenticated"},
		{"no refresh", access, "", "Not authenticated"},
		{"no access", "", refresh, "Not authenticated"},
		{"bad access", "garbage", refresh, "Invalid token: "},
		{"bad refresh", access, "garbage", "Invalid token: "},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := provider(withTokens(tc.access, tc.refresh), nil)
			var authErr jwt.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("want AuthError, have %v", err)
			}
			if !strings.HasPrefix(authErr.Detail, tc.want) {
				t.Errorf("want %q, have %q", tc.want, authErr.Detail)
			}
		})
	}
}

func TestUserProviderOverrides(t *testing.T) {
	iss := newIssuer(t)
	parser, _ := casdoor.NewTokenParser(iss.cert, clientID)
	errLogin, errToken := errors.New("login"), errors.New("token")
	provider := casdoor.NewUserProvider(parser,
		casdoor.Unauthorized(func() error { return errLogin }),
		casdoor.InvalidToken(func(string) error { return errToken }),
	)

	if _, err := provider(context.Background(), nil); err != errLogin {
		t.Errorf("want %v, have %v", errLogin, err)
	}
	ctx := context.WithValue(context.Background(), casdoor.AccessTokenContextKey, "x")
	ctx = context.WithValue(ctx, casdoor.RefreshTokenContextKey, "y")
	if _, err := provider(ctx, nil); err != errToken {
		t.Errorf("want %v, have %v", errToken, err)
	}
}

func TestNewTokenParserRejectsGarbage(t *testing.T) {
	if _, err := casdoor.NewTokenParser("not a certificate", clientID); err == nil {
		t.Error("want error, have nil")
	}
}
