// Package casbin adapts casbin/v2 engines to guard.Enforcer and provides the
// usual ways of obtaining one per request: a shared engine, a fresh engine
// loaded from files, or an engine described by context values.
package casbin

import (
	"context"
	"errors"
	"fmt"

	stdcasbin "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/casbinkit/guard"
)

var (
	// ErrModelContextMissing required CasbinModel
	ErrModelContextMissing = errors.New("CasbinModel is required in context")
	// ErrPolicyContextMissing required CasbinPolicy
	ErrPolicyContextMissing = errors.New("CasbinPolicy is required in context")
)

type contextKey string

const (
	// ModelContextKey key to store the model, can be a file or casbin model
	// a model file e.g. "path/to/basic_model.conf"
	ModelContextKey contextKey = "CasbinModel"
	// PolicyContextKey key to store the policy, can be a file or casbin policy adapter
	// a policy file e.g. "path/to/basic_policy.csv"
	PolicyContextKey contextKey = "CasbinPolicy"
	// EnforcerContextKey key where a ready enforcer can be stored
	EnforcerContextKey contextKey = "CasbinEnforcer"
)

// Enforcer is the part of a casbin engine the guard needs. *casbin.Enforcer,
// *casbin.SyncedEnforcer and *casbin.CachedEnforcer all satisfy it.
type Enforcer interface {
	Enforce(rvals ...interface{}) (bool, error)
}

type enforcer struct {
	e Enforcer
}

// NewEnforcer adapts a casbin engine to guard.Enforcer. The user becomes the
// first request value, followed by the resolved values in order. Decisions
// are made synchronously.
func NewEnforcer(e Enforcer) guard.Enforcer {
	return enforcer{e: e}
}

func (e enforcer) Enforce(_ context.Context, user interface{}, values ...interface{}) guard.Decision {
	rvals := make([]interface{}, 0, len(values)+1)
	rvals = append(rvals, user)
	rvals = append(rvals, values...)
	return guard.Decided(e.e.Enforce(rvals...))
}

// Static returns a provider that hands out the same engine to every request.
// Use a *casbin.SyncedEnforcer if policies change while serving.
func Static(e Enforcer) guard.EnforcerProvider {
	return guard.StaticProvider(NewEnforcer(e))
}

// FileProvider returns a provider that builds a fresh engine from the model
// and policy files on every call. Load errors are returned unchanged.
func FileProvider(modelPath, policyPath string) guard.EnforcerProvider {
	return func(context.Context, interface{}) (guard.Enforcer, error) {
		e, err := stdcasbin.NewEnforcer(modelPath, policyPath)
		if err != nil {
			return nil, err
		}
		return NewEnforcer(e), nil
	}
}

// FromContext returns a provider that uses the engine stored under
// EnforcerContextKey, or else builds one from the values stored under
// ModelContextKey and PolicyContextKey.
func FromContext() guard.EnforcerProvider {
	return func(ctx context.Context, _ interface{}) (guard.Enforcer, error) {
		if e, ok := ctx.Value(EnforcerContextKey).(Enforcer); ok {
			return NewEnforcer(e), nil
		}
		casbinModel := ctx.Value(ModelContextKey)
		if casbinModel == nil {
			return nil, ErrModelContextMissing
		}
		casbinPolicy := ctx.Value(PolicyContextKey)
		if casbinPolicy == nil {
			return nil, ErrPolicyContextMissing
		}
		e, err := stdcasbin.NewEnforcer(casbinModel, casbinPolicy)
		if err != nil {
			return nil, err
		}
		return NewEnforcer(e), nil
	}
}

// ModelLoader returns a new casbin model. Models are mutated as policies are
// added, so every engine needs its own.
type ModelLoader func() (model.Model, error)

// ModelFile loads the model from a file on every call.
func ModelFile(path string) ModelLoader {
	return func() (model.Model, error) { return model.NewModelFromFile(path) }
}

// ModelText parses the model from text on every call.
func ModelText(text string) ModelLoader {
	return func() (model.Model, error) { return model.NewModelFromString(text) }
}

// NewEngine builds an engine from the model and adds the given "p" rules.
func NewEngine(load ModelLoader, rules [][]string) (*stdcasbin.Enforcer, error) {
	m, err := load()
	if err != nil {
		return nil, err
	}
	e, err := stdcasbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if _, err := e.AddPolicy(rule); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", rule, err)
		}
	}
	return e, nil
}
