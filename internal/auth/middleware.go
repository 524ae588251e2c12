package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware provides HTTP middleware for bearer-token validation.
type Middleware struct {
	Config  Config
	Skipper Skipper
	// QueryTokenPaths lists paths that may carry the token in the access_token query
	// parameter, for clients (browsers opening websockets) that cannot set headers.
	QueryTokenPaths map[string]bool
}

// NewMiddleware constructs a middleware that skips probes, metrics and the demo values.
func NewMiddleware(cfg Config) Middleware {
	return Middleware{
		Config:          cfg,
		Skipper:         PublicPaths,
		QueryTokenPaths: map[string]bool{"/v1/chat": true},
	}
}

// PublicPaths reports whether r targets an unauthenticated endpoint.
func PublicPaths(r *http.Request) bool {
	switch {
	case r.Method == http.MethodOptions:
		return true
	case r.URL.Path == "/healthz", r.URL.Path == "/metrics":
		return true
	case r.URL.Path == "/v1/values", strings.HasPrefix(r.URL.Path, "/v1/values/"):
		return true
	}
	return false
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		ctx := WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if m.QueryTokenPaths[r.URL.Path] {
			return Parse(r.URL.Query().Get("access_token"), m.Config)
		}
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return Parse(token, m.Config)
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	detail := ErrInvalidToken.Error()
	if errors.Is(err, ErrMissingToken) {
		detail = ErrMissingToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": detail})
}
