// Package basic resolves the current user from HTTP Basic credentials.
package basic

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	httptransport "github.com/go-kit/kit/transport/http"

	"github.com/casbinkit/guard"
)

// AuthError represents generic Authorization error
type AuthError struct {
	Realm string
}

// StatusCode is an implementation of StatusCoder interface in go-kit/http
func (AuthError) StatusCode() int {
	return http.StatusUnauthorized
}

// Error is an implementation of Error interface
func (AuthError) Error() string {
	return http.StatusText(http.StatusUnauthorized)
}

// Headers is an implementation of Headerer interface in go-kit/http
func (e AuthError) Headers() http.Header {
	return http.Header{
		"Content-Type":           []string{"text/plain; charset=utf-8"},
		"X-Content-Type-Options": []string{"nosniff"},
		"WWW-Authenticate":       []string{fmt.Sprintf(`Basic realm=%q`, e.Realm)}}
}

// passwordIsValid hashes both sides so the comparison takes the same time
// whatever their lengths.
func passwordIsValid(given, required string) bool {
	givenBytes := sha256.Sum256([]byte(given))
	requiredBytes := sha256.Sum256([]byte(required))
	return subtle.ConstantTimeCompare(givenBytes[:], requiredBytes[:]) == 1
}

// parseBasicAuth parses an HTTP Basic Authentication string.
// "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==" returns ("Aladdin", "open sesame", true).
func parseBasicAuth(auth string) (username, password string, ok bool) {
	const prefix = "basic "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return
	}
	c, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return
	}
	cs := string(c)
	s := strings.IndexByte(cs, ':')
	if s < 0 {
		return
	}
	return cs[:s], cs[s+1:], true
}

// NewUserProvider returns a resolver checking the Authorization header, as
// placed in the context by httptransport.PopulateRequestContext, against
// creds, a map of user name to password. The user name is the resolved user.
func NewUserProvider(creds map[string]string, realm string) guard.Resolver {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		auth, _ := ctx.Value(httptransport.ContextKeyRequestAuthorization).(string)
		givenUser, givenPass, ok := parseBasicAuth(auth)
		if !ok {
			return nil, AuthError{realm}
		}
		requiredPass, known := creds[givenUser]
		if !passwordIsValid(givenPass, requiredPass) || !known {
			return nil, AuthError{realm}
		}
		return givenUser, nil
	}
}
