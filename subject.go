package guard

import "context"

// Resolver produces a value for the request being served. It may read
// anything the transport placed in the context, as well as the decoded
// request itself.
type Resolver func(ctx context.Context, request interface{}) (interface{}, error)

// Selector transforms a resolved value into the value handed to the
// enforcer. Selectors must be pure; a panic in a selector is not recovered.
type Selector func(value interface{}) interface{}

// Identity is the default Selector. It returns its argument.
func Identity(v interface{}) interface{} { return v }

// Subject is a permission argument whose value is computed per request, for
// example the owner of the article addressed by the URL. Subjects are built
// once, when routes are wired, and shared by every request to the route.
type Subject struct {
	resolver Resolver
	selector Selector
}

// NewSubject returns a Subject resolving r and applying s to the result. A
// nil selector means Identity.
func NewSubject(r Resolver, s Selector) Subject {
	if s == nil {
		s = Identity
	}
	return Subject{resolver: r, selector: s}
}

// Resolver returns the subject's value producer.
func (s Subject) Resolver() Resolver { return s.resolver }

// Selector returns the subject's transform.
func (s Subject) Selector() Selector {
	if s.selector == nil {
		return Identity
	}
	return s.selector
}
