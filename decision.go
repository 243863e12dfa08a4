package guard

import "context"

// Decision is the outcome of a policy check. Synchronous engines return a
// Decision that is already resolved; engines that call out to a remote
// service may return one that is still pending. The guard treats both the
// same way, by awaiting it. The zero Decision denies.
type Decision struct {
	r *result
}

type result struct {
	done    chan struct{}
	allowed bool
	err     error
}

var closed = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Decided returns a resolved Decision.
func Decided(allowed bool, err error) Decision {
	return Decision{r: &result{done: closed, allowed: allowed, err: err}}
}

// Allow returns a resolved positive Decision.
func Allow() Decision { return Decided(true, nil) }

// Deny returns a resolved negative Decision.
func Deny() Decision { return Decided(false, nil) }

// Defer runs fn in its own goroutine and returns a Decision that resolves
// when fn returns. fn receives ctx and should give up when it is done.
func Defer(ctx context.Context, fn func(context.Context) (bool, error)) Decision {
	r := &result{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.allowed, r.err = fn(ctx)
	}()
	return Decision{r: r}
}

// Await blocks until the decision is resolved or ctx is done, whichever
// happens first. A cancelled wait reports ctx.Err(), never a denial.
func (d Decision) Await(ctx context.Context) (bool, error) {
	if d.r == nil {
		return false, nil
	}
	select {
	case <-d.r.done:
		return d.r.allowed, d.r.err
	default:
	}
	select {
	case <-d.r.done:
		return d.r.allowed, d.r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
