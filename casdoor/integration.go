package casdoor

import (
	"net/http"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"

	"github.com/casbinkit/guard"
)

// Config configures an Integration.
type Config struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	// Certificate is the application's token signing certificate in PEM form.
	Certificate string
	Target      Target

	// RedirectURL is the callback URL registered with the application.
	RedirectURL        string
	RedirectAfterLogin string
	RouterPrefix       string
	// Cookies defaults to DefaultCookieOptions.
	Cookies *CookieOptions
	// UserFactory defaults to DefaultUser.
	UserFactory UserFactory
	Client      []ClientOption
	HTTPClient  *http.Client
	Logger      log.Logger
}

// Integration wires Casdoor login and remote enforcement together.
type Integration struct {
	user     guard.Resolver
	enforcer *Enforcer
	cookies  CookieOptions
	router   *mux.Router
}

// NewIntegration builds the token parser, the user provider, the remote
// enforcer and the login routes described by cfg. A zero cfg.Target yields
// ErrNoTarget.
func NewIntegration(cfg Config) (*Integration, error) {
	if cfg.Target.IsZero() {
		return nil, ErrNoTarget
	}
	parser, err := NewTokenParser(cfg.Certificate, cfg.ClientID)
	if err != nil {
		return nil, err
	}
	cookies := DefaultCookieOptions()
	if cfg.Cookies != nil {
		cookies = *cfg.Cookies
	}
	client := cfg.Client
	if cfg.HTTPClient != nil {
		client = append([]ClientOption{WithHTTPClient(cfg.HTTPClient)}, client...)
	}
	enforce, err := MakeEnforceEndpoint(cfg.Endpoint, cfg.ClientID, cfg.ClientSecret, client...)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	Routes(router, RouterConfig{
		OAuth2:             OAuth2Config(cfg.Endpoint, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL),
		Cookies:            cookies,
		RedirectAfterLogin: cfg.RedirectAfterLogin,
		Prefix:             cfg.RouterPrefix,
		HTTPClient:         cfg.HTTPClient,
		Logger:             cfg.Logger,
	})

	return &Integration{
		user:     NewUserProvider(parser),
		enforcer: NewEnforcer(parser, cfg.Target, cfg.UserFactory, enforce),
		cookies:  cookies,
		router:   router,
	}, nil
}

// UserProvider validates the token cookies and returns the access token.
func (i *Integration) UserProvider() guard.Resolver { return i.user }

// EnforcerProvider always yields the same remote enforcer.
func (i *Integration) EnforcerProvider() guard.EnforcerProvider {
	return guard.StaticProvider(i.enforcer)
}

// Handler serves the callback and logout routes.
func (i *Integration) Handler() http.Handler { return i.router }

// ServerBefore returns the option every guarded server needs to see the
// token cookies.
func (i *Integration) ServerBefore() httptransport.ServerOption {
	return httptransport.ServerBefore(CookiesToContext(i.cookies.AccessName, i.cookies.RefreshName))
}

// Guard returns a guard using this integration's providers. A nil errorf
// answers denials with guard.Forbidden.
func (i *Integration) Guard(errorf guard.ErrorFactory, options ...guard.Option) *guard.Guard {
	return guard.New(i.user, i.EnforcerProvider(), errorf, options...)
}
