// Command articlesvc serves the articles example behind a guard.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	stdjwt "github.com/dgrijalva/jwt-go"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/casbinkit/guard"
	"github.com/casbinkit/guard/auth/casbin"
	"github.com/casbinkit/guard/auth/jwt"
	"github.com/casbinkit/guard/examples/articles"
	"github.com/casbinkit/guard/sqlpolicy"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	flag.Parse()

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		level.Error(logger).Log("during", "config", "err", err)
		os.Exit(1)
	}
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(cfg.LogLevel, level.InfoValue())))

	var decisions metrics.Counter
	var latency metrics.Histogram
	{
		decisions = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "articlesvc",
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Total count of enforcement decisions by outcome.",
		}, []string{"outcome"})
		latency = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "articlesvc",
			Subsystem: "guard",
			Name:      "decision_duration_seconds",
			Help:      "Enforcement latency in seconds.",
		}, []string{"outcome"})
	}

	var (
		provider guard.EnforcerProvider
		policies articles.PolicyStore
	)
	switch cfg.Enforcer.Mode {
	case "file":
		provider = casbin.FileProvider(cfg.Enforcer.Model, cfg.Enforcer.Policy)
		policies = articles.FilePolicies{Model: cfg.Enforcer.Model, Policy: cfg.Enforcer.Policy}
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Enforcer.Database)
		if err != nil {
			level.Error(logger).Log("during", "open database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := articles.Seed(context.Background(), db); err != nil {
			level.Error(logger).Log("during", "seed database", "err", err)
			os.Exit(1)
		}
		store := sqlpolicy.New(
			casbin.ModelText(articles.Model()), db, articles.PolicyQuery,
			sqlpolicy.WithLogger(log.With(logger, "component", "sqlpolicy")),
		)
		provider = store.Provide
		policies = articles.SQLPolicies{Provider: store}
	}
	provider = guard.InstrumentingProvider(decisions, latency, provider)
	provider = guard.LoggingProvider(log.With(logger, "component", "enforcer"), provider)

	keys := jwt.KeySet{"": {Method: stdjwt.SigningMethodHS256, Key: []byte(cfg.Auth.Secret)}}
	if cfg.Auth.Secret == defaultConfig().Auth.Secret {
		level.Warn(logger).Log("msg", "using the default token secret")
	}

	var (
		user   guard.Resolver
		before []httptransport.RequestFunc
	)
	switch cfg.Auth.Mode {
	case "jwt":
		user = guard.Shared(articles.JWTUser(keys))
		before = []httptransport.RequestFunc{jwt.HTTPToContext(), jwt.CookieToContext(cfg.Auth.Cookie)}
	case "basic":
		user = guard.Shared(articles.BasicUser(cfg.accounts(), cfg.Auth.Realm))
	}

	var handler http.Handler
	{
		g := guard.New(user, provider, guard.Forbidden, guard.WithLogger(log.With(logger, "component", "guard")))
		svc := articles.NewInmemService(
			articles.Article{ID: 1, Title: "First post", Owner: "alice"},
			articles.Article{ID: 2, Title: "Second post", Owner: "bob"},
		)
		login := articles.JWTLogin(cfg.accounts(), keys, cfg.Auth.TokenTTL)
		endpoints := articles.MakeEndpoints(svc, g, user, login, policies)
		handler = articles.MakeHTTPHandler(endpoints, log.With(logger, "component", "HTTP"), before...)
	}

	var g run.Group
	{
		debugListener, err := net.Listen("tcp", cfg.DebugAddr)
		if err != nil {
			level.Error(logger).Log("transport", "debug/HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		g.Add(func() error {
			level.Info(logger).Log("transport", "debug/HTTP", "addr", cfg.DebugAddr)
			return http.Serve(debugListener, mux)
		}, func(error) {
			debugListener.Close()
		})
	}
	{
		httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			level.Error(logger).Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			level.Info(logger).Log("transport", "HTTP", "addr", cfg.HTTPAddr, "auth", cfg.Auth.Mode, "enforcer", cfg.Enforcer.Mode)
			return http.Serve(httpListener, handler)
		}, func(error) {
			httpListener.Close()
		})
	}
	{
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	level.Info(logger).Log("exit", g.Run())
}
