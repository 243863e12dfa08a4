package guard

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
)

// Decision outcomes, as reported by InstrumentingEnforcer.
const (
	OutcomeAllow = "allow"
	OutcomeDeny  = "deny"
	OutcomeError = "error"
)

type instrumentingEnforcer struct {
	count   metrics.Counter
	latency metrics.Histogram
	next    Enforcer
}

// InstrumentingEnforcer returns an Enforcer that counts the decisions made
// by next, labelled "outcome", and observes their latency in seconds.
func InstrumentingEnforcer(count metrics.Counter, latency metrics.Histogram, next Enforcer) Enforcer {
	return instrumentingEnforcer{count: count, latency: latency, next: next}
}

func (e instrumentingEnforcer) Enforce(ctx context.Context, user interface{}, values ...interface{}) Decision {
	begin := time.Now()
	d := e.next.Enforce(ctx, user, values...)
	return Defer(ctx, func(ctx context.Context) (bool, error) {
		allowed, err := d.Await(ctx)
		outcome := OutcomeDeny
		switch {
		case err != nil:
			outcome = OutcomeError
		case allowed:
			outcome = OutcomeAllow
		}
		e.count.With("outcome", outcome).Add(1)
		e.latency.With("outcome", outcome).Observe(time.Since(begin).Seconds())
		return allowed, err
	})
}

// InstrumentingProvider returns an EnforcerProvider whose enforcers are
// wrapped by InstrumentingEnforcer.
func InstrumentingProvider(count metrics.Counter, latency metrics.Histogram, next EnforcerProvider) EnforcerProvider {
	return func(ctx context.Context, request interface{}) (Enforcer, error) {
		e, err := next(ctx, request)
		if err != nil || e == nil {
			return e, err
		}
		return InstrumentingEnforcer(count, latency, e), nil
	}
}
