package casdoor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/ratelimit"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// RemoteError is returned when Casdoor answers an enforce call with a
// status other than "ok".
type RemoteError struct {
	Msg string
}

func (e RemoteError) Error() string { return "casdoor: " + e.Msg }

type enforceRequest struct {
	Query url.Values
	Body  []interface{}
}

type enforceResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
	Data   []bool `json:"data"`
}

type clientConfig struct {
	client  *http.Client
	limiter *rate.Limiter
	breaker gobreaker.Settings
}

// ClientOption sets an optional parameter for the enforce client.
type ClientOption func(*clientConfig)

// WithHTTPClient sets the client used to reach Casdoor.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.client = c }
}

// WithLimiter bounds the rate of enforce calls. Calls over the limit fail
// with ratelimit.ErrLimited. Unlimited by default.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(cfg *clientConfig) { cfg.limiter = l }
}

// WithBreaker sets the circuit breaker settings.
func WithBreaker(s gobreaker.Settings) ClientOption {
	return func(cfg *clientConfig) { cfg.breaker = s }
}

// MakeEnforceEndpoint returns an endpoint calling {instance}/api/enforce,
// authenticated with the application's client credentials.
func MakeEnforceEndpoint(instance, clientID, clientSecret string, options ...ClientOption) (endpoint.Endpoint, error) {
	cfg := clientConfig{
		client:  http.DefaultClient,
		limiter: rate.NewLimiter(rate.Inf, 1),
		breaker: gobreaker.Settings{Name: "casdoor-enforce"},
	}
	for _, option := range options {
		option(&cfg)
	}

	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(strings.TrimRight(instance, "/") + "/api/enforce")
	if err != nil {
		return nil, err
	}

	var e endpoint.Endpoint
	e = httptransport.NewClient(
		"POST",
		u,
		encodeEnforceRequest,
		decodeEnforceResponse,
		httptransport.SetClient(cfg.client),
		httptransport.ClientBefore(func(ctx context.Context, r *http.Request) context.Context {
			r.SetBasicAuth(clientID, clientSecret)
			return ctx
		}),
	).Endpoint()
	e = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(cfg.breaker))(e)
	e = ratelimit.NewErroringLimiter(cfg.limiter)(e)
	return e, nil
}

func encodeEnforceRequest(ctx context.Context, r *http.Request, request interface{}) error {
	req := request.(enforceRequest)
	r.URL.RawQuery = req.Query.Encode()
	return httptransport.EncodeJSONRequest(ctx, r, req.Body)
}

func decodeEnforceResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return nil, errors.New(r.Status)
	}
	var resp enforceResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}
