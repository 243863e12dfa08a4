package casdoor

import (
	"crypto/rsa"
	"errors"
	"fmt"

	jwt "github.com/dgrijalva/jwt-go"
)

// ErrInvalidAudience is returned for tokens issued to another application.
var ErrInvalidAudience = errors.New("token was issued for another application")

// Claims are the claims of a Casdoor token. "owner" and "name" identify the
// user.
type Claims map[string]interface{}

func (c Claims) str(key string) string {
	s, _ := c[key].(string)
	return s
}

// TokenParser validates RS256 tokens issued by a Casdoor application.
type TokenParser struct {
	key      *rsa.PublicKey
	audience string
}

// NewTokenParser returns a parser for tokens signed with the application's
// certificate (or bare public key) in PEM form. Tokens must be issued to
// clientID unless it is empty.
func NewTokenParser(certificate, clientID string) (*TokenParser, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(certificate))
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return &TokenParser{key: key, audience: clientID}, nil
}

// Parse validates the token and returns its claims.
func (p *TokenParser) Parse(token string) (Claims, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != "RS256" {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.key, nil
	})
	if err != nil {
		if e, ok := err.(*jwt.ValidationError); ok && e.Inner != nil {
			return nil, e.Inner
		}
		return nil, err
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return nil, errors.New("token is invalid")
	}
	if p.audience != "" && !hasAudience(claims["aud"], p.audience) {
		return nil, ErrInvalidAudience
	}
	return Claims(claims), nil
}

// hasAudience accepts "aud" as a string or, as Casdoor issues it, a list.
func hasAudience(aud interface{}, want string) bool {
	switch aud := aud.(type) {
	case string:
		return aud == want
	case []interface{}:
		for _, a := range aud {
			if a == want {
				return true
			}
		}
	}
	return false
}
