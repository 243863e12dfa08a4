package guard

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
)

// Guard produces endpoint middlewares that authenticate and authorize
// requests. A Guard holds no per-request state and is safe to share between
// any number of routes and concurrent requests.
type Guard struct {
	user       Resolver
	enforcer   EnforcerProvider
	errorf     ErrorFactory
	logger     log.Logger
	sequential bool
}

// Option sets an optional parameter for guards.
type Option func(*Guard)

// WithLogger sets the logger used to report denials and resolution failures
// at debug level. By default, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// Sequential makes the guard resolve the user, then the enforcer, then each
// Subject in declaration order, stopping at the first failure. By default
// the user and the enforcer are resolved concurrently, and only once both
// succeed are the Subjects resolved, concurrently among themselves.
func Sequential() Option {
	return func(g *Guard) { g.sequential = true }
}

// New returns a Guard. The user provider resolves the caller's identity and
// signals an authentication failure by returning an error. The enforcer
// provider yields the policy engine. errorf builds the error returned on
// denial; if nil, Forbidden is used.
func New(user Resolver, enforcer EnforcerProvider, errorf ErrorFactory, options ...Option) *Guard {
	if errorf == nil {
		errorf = Forbidden
	}
	g := &Guard{
		user:     user,
		enforcer: enforcer,
		errorf:   errorf,
		logger:   log.NewNopLogger(),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// AuthRequired returns a middleware that lets a request through only if the
// user provider resolves. The resolved user is not handed to the endpoint;
// wrap the provider with Shared if the endpoint needs it too. Provider
// errors are returned unchanged. The enforcer and the error factory are
// never consulted.
func (g *Guard) AuthRequired() endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			ctx = WithScope(ctx)
			if _, err := g.user(ctx, request); err != nil {
				level.Debug(g.logger).Log("msg", "user resolution failed", "err", err)
				return nil, err
			}
			return next(ctx, request)
		}
	}
}

// RequirePermission returns a middleware that lets a request through only
// if the enforcer allows it. Each argument is either a Subject, resolved per
// request and passed through its selector, or a constant, passed as-is. The
// enforcer is called as Enforce(ctx, user, values...) with values[i]
// standing for args[i].
//
// Subjects are resolved only after the user and the enforcer, so an
// unauthenticated request fails with the user provider's error and never
// reaches a Subject's resolver. If the user, the enforcer or any Subject
// fails to resolve, or the enforcer itself fails, that error is returned
// unchanged. If the enforcer denies the
// request, the guard returns the error factory's error for the same user and
// values, and the wrapped endpoint is not invoked.
func (g *Guard) RequirePermission(args ...interface{}) endpoint.Middleware {
	args = append([]interface{}(nil), args...)
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			ctx = WithScope(ctx)

			res, err := g.resolve(ctx, request, args)
			if err != nil {
				level.Debug(g.logger).Log("msg", "resolution failed", "err", err)
				return nil, err
			}

			values := make([]interface{}, len(args))
			for i, arg := range args {
				if s, ok := arg.(Subject); ok {
					values[i] = s.Selector()(res.subjects[i])
					continue
				}
				values[i] = arg
			}

			allowed, err := res.enforcer.Enforce(ctx, res.user, values...).Await(ctx)
			if err != nil {
				level.Debug(g.logger).Log("msg", "enforcement failed", "err", err)
				return nil, err
			}
			if !allowed {
				level.Debug(g.logger).Log("msg", "access denied", "user", res.user, "values", values)
				if err := g.errorf(res.user, values...); err != nil {
					return nil, err
				}
				return nil, Forbidden(res.user, values...)
			}

			return next(ctx, request)
		}
	}
}

// resolution holds what the guard resolved for a single request. subjects
// is indexed like the declared arguments; slots for constants stay nil.
type resolution struct {
	user     interface{}
	enforcer Enforcer
	subjects []interface{}
}

func (g *Guard) resolve(ctx context.Context, request interface{}, args []interface{}) (*resolution, error) {
	res := &resolution{subjects: make([]interface{}, len(args))}

	identity := []func(context.Context) error{
		func(ctx context.Context) (err error) {
			res.user, err = g.user(ctx, request)
			return err
		},
		func(ctx context.Context) (err error) {
			res.enforcer, err = g.enforcer(ctx, request)
			return err
		},
	}
	if err := g.run(ctx, identity); err != nil {
		return nil, err
	}
	if res.enforcer == nil {
		return nil, ErrEnforcerMissing
	}

	var subjects []func(context.Context) error
	for i, arg := range args {
		if s, ok := arg.(Subject); ok {
			i, s := i, s
			subjects = append(subjects, func(ctx context.Context) (err error) {
				res.subjects[i], err = s.Resolver()(ctx, request)
				return err
			})
		}
	}
	if err := g.run(ctx, subjects); err != nil {
		return nil, err
	}
	return res, nil
}

// run executes steps in order when the guard is sequential, and
// concurrently otherwise. The first error is returned.
func (g *Guard) run(ctx context.Context, steps []func(context.Context) error) error {
	if g.sequential || len(steps) < 2 {
		for _, step := range steps {
			if err := step(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	eg, egctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		step := step
		eg.Go(func() error { return step(egctx) })
	}
	return eg.Wait()
}
