// Package sqlpolicy provides enforcers whose policies are read from a
// database on every request.
package sqlpolicy

import (
	"context"
	"database/sql"
	"time"

	stdcasbin "github.com/casbin/casbin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/casbinkit/guard"
	"github.com/casbinkit/guard/auth/casbin"
)

// Querier runs a query. *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Provider builds a fresh casbin engine per call from the rows returned by
// its query. Every column of a row is read as a string; NULL reads as "".
type Provider struct {
	loadModel casbin.ModelLoader
	db        Querier
	query     string
	mapper    func(row []string) []string
	defaults  [][]string
	logger    log.Logger
}

// Option sets an optional parameter for providers.
type Option func(*Provider)

// Mapper sets the function turning a row into a "p" rule. By default the
// row's columns are used as-is.
func Mapper(f func(row []string) []string) Option {
	return func(p *Provider) { p.mapper = f }
}

// DefaultPolicies sets rules added before those read from the database.
func DefaultPolicies(rules ...[]string) Option {
	return func(p *Provider) { p.defaults = append(p.defaults, rules...) }
}

// WithLogger sets the logger reporting loaded policy counts at debug level.
func WithLogger(logger log.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New returns a provider reading rules with query from db.
func New(loadModel casbin.ModelLoader, db Querier, query string, options ...Option) *Provider {
	p := &Provider{
		loadModel: loadModel,
		db:        db,
		query:     query,
		mapper:    func(row []string) []string { return row },
		logger:    log.NewNopLogger(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Provide implements guard.EnforcerProvider. Query, scan and model errors
// are returned unchanged.
func (p *Provider) Provide(ctx context.Context, _ interface{}) (guard.Enforcer, error) {
	e, err := p.Engine(ctx)
	if err != nil {
		return nil, err
	}
	return casbin.NewEnforcer(e), nil
}

// Engine builds the casbin engine Provide would use, holding the default
// rules followed by the rows currently in the database.
func (p *Provider) Engine(ctx context.Context) (*stdcasbin.Enforcer, error) {
	begin := time.Now()
	rules, err := p.rules(ctx)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEngine(p.loadModel, rules)
	if err != nil {
		return nil, err
	}
	level.Debug(p.logger).Log("msg", "policies loaded", "count", len(rules), "took", time.Since(begin))
	return e, nil
}

func (p *Provider) rules(ctx context.Context) ([][]string, error) {
	rows, err := p.db.QueryContext(ctx, p.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rules := append([][]string(nil), p.defaults...)
	for rows.Next() {
		cells := make([]sql.NullString, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = c.String
		}
		rules = append(rules, p.mapper(row))
	}
	return rules, rows.Err()
}
