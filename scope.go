package guard

import (
	"context"
	"sync"
)

type scopeKey struct{}

// scope caches the results of Shared resolvers for one request.
type scope struct {
	mu      sync.Mutex
	entries map[*sharedKey]*entry
}

type sharedKey struct{ _ byte }

type entry struct {
	once  sync.Once
	value interface{}
	err   error
}

func (s *scope) entry(k *sharedKey) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	return e
}

// WithScope returns a context carrying a request scope for Shared resolvers.
// If ctx already carries one, ctx is returned unchanged. Guard middlewares
// call it before resolving anything, and pass the scoped context on to the
// wrapped endpoint.
func WithScope(ctx context.Context) context.Context {
	if _, ok := ctx.Value(scopeKey{}).(*scope); ok {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &scope{entries: map[*sharedKey]*entry{}})
}

// Shared wraps r so that it runs at most once per request scope. Every
// caller within the scope, the guard and the wrapped endpoint alike,
// observes the same value and error. Outside a scope, r is called directly.
//
// Use Shared for user providers and subject resolvers whose values the
// endpoint needs as well.
func Shared(r Resolver) Resolver {
	k := &sharedKey{}
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		s, ok := ctx.Value(scopeKey{}).(*scope)
		if !ok {
			return r(ctx, request)
		}
		e := s.entry(k)
		e.once.Do(func() { e.value, e.err = r(ctx, request) })
		return e.value, e.err
	}
}
