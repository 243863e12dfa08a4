package casdoor

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"github.com/casbinkit/guard/auth/jwt"
)

// ErrMissingCode is returned when the callback is called without a code.
var ErrMissingCode = errors.New("missing authorization code")

// CookieOptions describes the cookies holding the tokens.
type CookieOptions struct {
	AccessName  string
	RefreshName string
	Secure      bool
	HTTPOnly    bool
	SameSite    http.SameSite
	Domain      string
	Path        string
	// MaxAge of 0 makes session cookies.
	MaxAge int
}

// DefaultCookieOptions returns secure, HTTP-only, SameSite=Lax cookies
// named access_token and refresh_token on path "/".
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		AccessName:  "access_token",
		RefreshName: "refresh_token",
		Secure:      true,
		HTTPOnly:    true,
		SameSite:    http.SameSiteLaxMode,
		Path:        "/",
	}
}

func (o CookieOptions) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   maxAge,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	}
}

// OAuth2Config returns the OAuth2 configuration of a Casdoor application.
func OAuth2Config(instance, clientID, clientSecret, redirectURL string) *oauth2.Config {
	instance = strings.TrimRight(instance, "/")
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  instance + "/login/oauth/authorize",
			TokenURL: instance + "/api/login/oauth/access_token",
		},
	}
}

// RouterConfig configures the login routes.
type RouterConfig struct {
	OAuth2             *oauth2.Config
	Cookies            CookieOptions
	RedirectAfterLogin string
	Prefix             string
	// HTTPClient is used for the token exchange if set.
	HTTPClient *http.Client
	Logger     log.Logger
}

// Routes registers GET {prefix}/callback, which exchanges an authorization
// code for tokens, stores them in cookies and redirects, and
// POST {prefix}/logout, which expires the cookies.
func Routes(r *mux.Router, cfg RouterConfig) {
	if cfg.RedirectAfterLogin == "" {
		cfg.RedirectAfterLogin = "/"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
	options := []httptransport.ServerOption{
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(cfg.Logger)),
	}

	r.Methods("GET").Path(cfg.Prefix + "/callback").Handler(httptransport.NewServer(
		makeCallbackEndpoint(cfg),
		decodeCallbackRequest,
		encodeCallbackResponse(cfg),
		options...,
	))
	r.Methods("POST").Path(cfg.Prefix + "/logout").Handler(httptransport.NewServer(
		func(context.Context, interface{}) (interface{}, error) { return struct{}{}, nil },
		httptransport.NopRequestDecoder,
		encodeLogoutResponse(cfg.Cookies),
		options...,
	))
}

type callbackRequest struct {
	Code  string
	State string
}

type callbackResponse struct {
	AccessToken  string
	RefreshToken string
}

type badRequest struct{ error }

func (badRequest) StatusCode() int { return http.StatusBadRequest }

func decodeCallbackRequest(_ context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	if q.Get("code") == "" {
		return nil, badRequest{ErrMissingCode}
	}
	return callbackRequest{Code: q.Get("code"), State: q.Get("state")}, nil
}

func makeCallbackEndpoint(cfg RouterConfig) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(callbackRequest)
		if cfg.HTTPClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
		}
		token, err := cfg.OAuth2.Exchange(ctx, req.Code)
		if err != nil {
			return nil, err
		}
		if token.AccessToken == "" || token.RefreshToken == "" {
			return nil, jwt.AuthError{Detail: http.StatusText(http.StatusUnauthorized)}
		}
		return callbackResponse{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
	}
}

func encodeCallbackResponse(cfg RouterConfig) httptransport.EncodeResponseFunc {
	return func(_ context.Context, w http.ResponseWriter, response interface{}) error {
		resp := response.(callbackResponse)
		http.SetCookie(w, cfg.Cookies.cookie(cfg.Cookies.AccessName, resp.AccessToken, cfg.Cookies.MaxAge))
		http.SetCookie(w, cfg.Cookies.cookie(cfg.Cookies.RefreshName, resp.RefreshToken, cfg.Cookies.MaxAge))
		w.Header().Set("Location", cfg.RedirectAfterLogin)
		w.WriteHeader(http.StatusFound)
		return nil
	}
}

func encodeLogoutResponse(o CookieOptions) httptransport.EncodeResponseFunc {
	return func(_ context.Context, w http.ResponseWriter, _ interface{}) error {
		http.SetCookie(w, o.cookie(o.AccessName, "", -1))
		http.SetCookie(w, o.cookie(o.RefreshName, "", -1))
		w.WriteHeader(http.StatusOK)
		return nil
	}
}
