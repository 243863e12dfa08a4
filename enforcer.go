package guard

import "context"

// Enforcer is a policy engine. It decides whether user may act given the
// resource values, which arrive in the order they were declared on the
// route. Implementations must be safe for concurrent use; the guard never
// mutates them.
type Enforcer interface {
	Enforce(ctx context.Context, user interface{}, values ...interface{}) Decision
}

// EnforcerFunc is an adapter to allow the use of ordinary functions as
// Enforcers.
type EnforcerFunc func(ctx context.Context, user interface{}, values ...interface{}) Decision

// Enforce implements Enforcer.
func (f EnforcerFunc) Enforce(ctx context.Context, user interface{}, values ...interface{}) Decision {
	return f(ctx, user, values...)
}

// EnforcerProvider yields the Enforcer for a request. It may hand out one
// long-lived engine or build a new one on every call.
type EnforcerProvider func(ctx context.Context, request interface{}) (Enforcer, error)

// StaticProvider returns an EnforcerProvider that always yields e.
func StaticProvider(e Enforcer) EnforcerProvider {
	return func(context.Context, interface{}) (Enforcer, error) { return e, nil }
}
