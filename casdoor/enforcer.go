package casdoor

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/endpoint"

	"github.com/casbinkit/guard"
)

// MissingClaimError is returned when a token lacks a claim the Casdoor
// subject is built from.
type MissingClaimError struct {
	Claim string
}

func (e MissingClaimError) Error() string {
	return fmt.Sprintf("casdoor: token has no %q claim", e.Claim)
}

// UserFactory builds the subject sent to Casdoor from the caller's claims.
type UserFactory func(Claims) (string, error)

// DefaultUser returns "owner/name". Both claims must be non-empty strings.
func DefaultUser(c Claims) (string, error) {
	for _, claim := range []string{"owner", "name"} {
		if c.str(claim) == "" {
			return "", MissingClaimError{Claim: claim}
		}
	}
	return c.str("owner") + "/" + c.str("name"), nil
}

// Enforcer delegates decisions to the Casdoor enforce API. The user it is
// given must be the raw access token, as returned by UserProvider.
type Enforcer struct {
	parser  *TokenParser
	target  Target
	user    UserFactory
	enforce endpoint.Endpoint
}

// NewEnforcer returns an Enforcer posting to the given enforce endpoint,
// usually built with MakeEnforceEndpoint. A nil user factory means
// DefaultUser.
func NewEnforcer(parser *TokenParser, target Target, user UserFactory, enforce endpoint.Endpoint) *Enforcer {
	if user == nil {
		user = DefaultUser
	}
	return &Enforcer{parser: parser, target: target, user: user, enforce: enforce}
}

// Enforce implements guard.Enforcer. The request sent is the user built by
// the factory followed by values. The request is allowed if any of the
// returned results is true.
func (e *Enforcer) Enforce(ctx context.Context, user interface{}, values ...interface{}) guard.Decision {
	return guard.Defer(ctx, func(ctx context.Context) (bool, error) {
		token, ok := user.(string)
		if !ok {
			return false, fmt.Errorf("casdoor: user must be an access token, got %T", user)
		}
		claims, err := e.parser.Parse(token)
		if err != nil {
			return false, err
		}
		query, err := e.target.Query(claims)
		if err != nil {
			return false, err
		}
		subject, err := e.user(claims)
		if err != nil {
			return false, err
		}

		body := make([]interface{}, 0, len(values)+1)
		body = append(body, subject)
		body = append(body, values...)

		response, err := e.enforce(ctx, enforceRequest{Query: query, Body: body})
		if err != nil {
			return false, err
		}
		resp := response.(enforceResponse)
		if resp.Status != "ok" {
			return false, RemoteError{Msg: resp.Msg}
		}
		for _, allowed := range resp.Data {
			if allowed {
				return true, nil
			}
		}
		return false, nil
	})
}
