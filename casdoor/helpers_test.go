package casdoor_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	stdjwt "github.com/dgrijalva/jwt-go"
)

const (
	clientID     = "app-client"
	clientSecret = "app-secret"
)

// issuer signs tokens the way a Casdoor application does.
type issuer struct {
	key  *rsa.PrivateKey
	cert string
}

func newIssuer(t *testing.T) *issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "casdoor"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return &issuer{key: key, cert: string(cert)}
}

func (i *issuer) token(t *testing.T, owner, name string, extra map[string]interface{}) string {
	t.Helper()
	claims := stdjwt.MapClaims{
		"owner": owner,
		"name":  name,
		"aud":   []string{clientID},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	s, err := stdjwt.NewWithClaims(stdjwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// enforceCall is one request received by the fake Casdoor server.
type enforceCall struct {
	Query string
	Body  []interface{}
}

// server fakes the Casdoor enforce and token endpoints.
type server struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []enforceCall
	allow  func(body []interface{}) []bool
	status string
	tokens map[string]interface{}
}

func newServer(t *testing.T) *server {
	s := &server{
		status: "ok",
		allow:  func([]interface{}) []bool { return []bool{false} },
		tokens: map[string]interface{}{"access_token": "a", "refresh_token": "r", "token_type": "Bearer"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/enforce", func(w http.ResponseWriter, r *http.Request) {
		if id, secret, ok := r.BasicAuth(); !ok || id != clientID || secret != clientSecret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body []interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.calls = append(s.calls, enforceCall{Query: r.URL.RawQuery, Body: body})
		status, data := s.status, s.allow(body)
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "msg": "enforcer not found", "data": data})
	})
	mux.HandleFunc("/api/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		s.mu.Lock()
		tokens := s.tokens
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokens)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *server) received() []enforceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]enforceCall(nil), s.calls...)
}

func (s *server) set(f func(*server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}
