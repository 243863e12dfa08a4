// Package jwt resolves the current user from a JSON Web Token carried in the
// Authorization header or a cookie.
package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"

	jwt "github.com/dgrijalva/jwt-go"

	"github.com/casbinkit/guard"
)

type contextKey string

// JWTContextKey holds the key used to store a raw JWT in the context.
const JWTContextKey contextKey = "JWTToken"

var (
	// ErrUnexpectedSigningMethod denotes a token signed with an algorithm
	// other than the one registered for its key.
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
	// ErrKIDNotFound denotes a token whose key ID is not in the key set.
	ErrKIDNotFound = errors.New("key ID was not found in key set")
)

// Claims are the claims of a validated token.
type Claims map[string]interface{}

// Key is a key and the signing method it is used with. RSA and ECDSA keys
// may be private keys; their public half is used for verification.
type Key struct {
	Method jwt.SigningMethod
	Key    interface{}
}

// KeySet maps a "kid" header to its key. Tokens without a "kid" header use
// the "" entry.
type KeySet map[string]Key

func (ks KeySet) keyfunc(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	key, ok := ks[kid]
	if !ok {
		return nil, ErrKIDNotFound
	}
	if token.Method.Alg() != key.Method.Alg() {
		return nil, ErrUnexpectedSigningMethod
	}
	switch k := key.Key.(type) {
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	case *ecdsa.PrivateKey:
		return &k.PublicKey, nil
	}
	return key.Key, nil
}

// Sign returns a token carrying claims, signed with the key registered
// under kid. A non-empty kid is recorded in the token header.
func Sign(kid string, keys KeySet, claims Claims) (string, error) {
	key, ok := keys[kid]
	if !ok {
		return "", ErrKIDNotFound
	}
	token := jwt.NewWithClaims(key.Method, jwt.MapClaims(claims))
	if kid != "" {
		token.Header["kid"] = kid
	}
	return token.SignedString(key.Key)
}

// AuthError is returned when a request carries no usable token. It renders
// as a 401 with a JSON body.
type AuthError struct {
	Detail string
}

func (e AuthError) Error() string { return e.Detail }

// StatusCode implements go-kit's http StatusCoder.
func (AuthError) StatusCode() int { return http.StatusUnauthorized }

// Headers implements go-kit's http Headerer.
func (AuthError) Headers() http.Header {
	return http.Header{
		"Content-Type":     []string{"application/json; charset=utf-8"},
		"WWW-Authenticate": []string{"Bearer"},
	}
}

// MarshalJSON renders the error as {"detail": ...}.
func (e AuthError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Detail string `json:"detail"`
	}{e.Detail})
}

// UnauthorizedError is the default error for a request without a token.
func UnauthorizedError() error {
	return AuthError{Detail: "Not authenticated"}
}

// InvalidTokenError is the default error for a token that fails parsing or
// validation.
func InvalidTokenError(reason string) error {
	return AuthError{Detail: "Invalid token: " + reason}
}

type userProvider struct {
	keys         KeySet
	user         func(Claims) (interface{}, error)
	unauthorized func() error
	invalid      func(reason string) error
}

// Option sets an optional parameter for user providers.
type Option func(*userProvider)

// UserModel converts validated claims into the user handed to the guard.
// By default the Claims themselves are the user.
func UserModel(f func(Claims) (interface{}, error)) Option {
	return func(p *userProvider) { p.user = f }
}

// Unauthorized overrides the error returned when no token is present.
func Unauthorized(f func() error) Option {
	return func(p *userProvider) { p.unauthorized = f }
}

// InvalidToken overrides the error returned for an invalid token.
func InvalidToken(f func(reason string) error) Option {
	return func(p *userProvider) { p.invalid = f }
}

// NewUserProvider returns a resolver that reads the token placed in the
// context by HTTPToContext or CookieToContext, verifies it against keys and
// returns the resulting user.
func NewUserProvider(keys KeySet, options ...Option) guard.Resolver {
	p := &userProvider{
		keys:         keys,
		user:         func(c Claims) (interface{}, error) { return c, nil },
		unauthorized: UnauthorizedError,
		invalid:      InvalidTokenError,
	}
	for _, option := range options {
		option(p)
	}
	return p.resolve
}

func (p *userProvider) resolve(ctx context.Context, _ interface{}) (interface{}, error) {
	tokenString, ok := ctx.Value(JWTContextKey).(string)
	if !ok || tokenString == "" {
		return nil, p.unauthorized()
	}

	token, err := jwt.Parse(tokenString, p.keys.keyfunc)
	if err != nil {
		if e, ok := err.(*jwt.ValidationError); ok && e.Inner != nil {
			return nil, p.invalid(e.Inner.Error())
		}
		return nil, p.invalid(err.Error())
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, p.invalid("token is invalid")
	}
	return p.user(Claims(claims))
}
