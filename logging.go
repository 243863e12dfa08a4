package guard

import (
	"context"
	"time"

	"github.com/go-kit/log"
)

type loggingEnforcer struct {
	logger log.Logger
	next   Enforcer
}

// LoggingEnforcer returns an Enforcer that logs every decision made by next.
// The decision is awaited before it is logged, so pending decisions are
// logged when they resolve.
func LoggingEnforcer(logger log.Logger, next Enforcer) Enforcer {
	return loggingEnforcer{logger: logger, next: next}
}

func (e loggingEnforcer) Enforce(ctx context.Context, user interface{}, values ...interface{}) Decision {
	begin := time.Now()
	d := e.next.Enforce(ctx, user, values...)
	return Defer(ctx, func(ctx context.Context) (allowed bool, err error) {
		defer func() {
			e.logger.Log(
				"method", "enforce",
				"user", user,
				"values", values,
				"allowed", allowed,
				"took", time.Since(begin),
				"err", err,
			)
		}()
		return d.Await(ctx)
	})
}

// LoggingProvider returns an EnforcerProvider whose enforcers are wrapped by
// LoggingEnforcer. Provider errors pass through untouched.
func LoggingProvider(logger log.Logger, next EnforcerProvider) EnforcerProvider {
	return func(ctx context.Context, request interface{}) (Enforcer, error) {
		e, err := next(ctx, request)
		if err != nil || e == nil {
			return e, err
		}
		return LoggingEnforcer(logger, e), nil
	}
}
