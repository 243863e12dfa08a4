package guard

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrEnforcerMissing is returned when an EnforcerProvider yields neither an
// Enforcer nor an error.
var ErrEnforcerMissing = errors.New("enforcer provider returned no enforcer")

// ErrorFactory builds the error returned when the enforcer denies a request.
// It receives the same user and values that were passed to the enforcer.
type ErrorFactory func(user interface{}, values ...interface{}) error

// ForbiddenError is the error built by Forbidden. It carries the context of
// the denied decision and renders as a 403 through go-kit's HTTP transport.
type ForbiddenError struct {
	User   interface{}
	Values []interface{}
}

// Forbidden is the default ErrorFactory.
func Forbidden(user interface{}, values ...interface{}) error {
	return ForbiddenError{User: user, Values: values}
}

// Error implements the error interface.
func (ForbiddenError) Error() string {
	return http.StatusText(http.StatusForbidden)
}

// StatusCode implements the StatusCoder interface in go-kit/transport/http.
func (ForbiddenError) StatusCode() int {
	return http.StatusForbidden
}

// Headers implements the Headerer interface in go-kit/transport/http.
func (ForbiddenError) Headers() http.Header {
	return http.Header{
		"Content-Type":           []string{"application/json; charset=utf-8"},
		"X-Content-Type-Options": []string{"nosniff"},
	}
}

// MarshalJSON keeps the decision context out of the response body.
func (e ForbiddenError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"detail": e.Error()})
}
