package casdoor

import (
	"errors"
	"net/url"
)

// ErrNoTarget is returned when enforcing against, or integrating with, the
// zero Target.
var ErrNoTarget = errors.New("casdoor: enforce target is not set")

// Value yields a target identifier from the caller's token claims.
type Value func(Claims) string

// Static returns a Value that ignores the claims.
func Static(s string) Value {
	return func(Claims) string { return s }
}

// Target selects the Casdoor object /api/enforce evaluates against. Build
// one with EnforceID, PermissionID, ModelID, ResourceID or Owner; exactly
// one identifier is ever sent.
type Target struct {
	param string
	value Value
}

// EnforceID targets a Casdoor enforcer, e.g. "my_org/my_enforcer".
func EnforceID(v Value) Target { return Target{"enforceId", v} }

// PermissionID targets a single permission object.
func PermissionID(v Value) Target { return Target{"permissionId", v} }

// ModelID targets every permission using a model.
func ModelID(v Value) Target { return Target{"modelId", v} }

// ResourceID targets every permission on a resource.
func ResourceID(v Value) Target { return Target{"resourceId", v} }

// Owner targets every permission of an organization.
func Owner(v Value) Target { return Target{"owner", v} }

// IsZero reports whether t names no identifier.
func (t Target) IsZero() bool { return t.value == nil }

// Query resolves the target for the given claims.
func (t Target) Query(c Claims) (url.Values, error) {
	if t.IsZero() {
		return nil, ErrNoTarget
	}
	return url.Values{t.param: []string{t.value(c)}}, nil
}
