// Package auth guards the HTTP API with a static API key and/or HS256 bearer
// tokens. With neither configured every request passes.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// APIKeyHeader carries the static API key.
const APIKeyHeader = "X-API-Key"

// Authentication methods recorded on the Principal.
const (
	MethodAPIKey = "api_key"
	MethodJWT    = "jwt"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Principal describes an authenticated caller.
type Principal struct {
	Subject string
	Method  string
}

// PrincipalFromContext returns the caller stored by Middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}

// Authenticator checks API keys and bearer tokens.
type Authenticator struct {
	apiKey string
	jwt    *JWTManager
	logger *slog.Logger
}

// NewAuthenticator returns an authenticator. Either check may be disabled by
// passing an empty key or a nil manager.
func NewAuthenticator(apiKey string, jwt *JWTManager, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{apiKey: apiKey, jwt: jwt, logger: logger.With("component", "auth")}
}

// Enabled reports whether any check is configured.
func (a *Authenticator) Enabled() bool {
	return a.apiKey != "" || a.jwt != nil
}

// Authenticate identifies the caller of r.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" && a.apiKey != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
			return nil, errors.New("invalid API key")
		}
		return &Principal{Subject: "api-key", Method: MethodAPIKey}, nil
	}

	if token, ok := bearerToken(r); ok && a.jwt != nil {
		claims, err := a.jwt.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &Principal{Subject: claims.Subject, Method: MethodJWT}, nil
	}

	return nil, errors.New("missing credentials")
}

// Middleware rejects unauthenticated requests with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			a.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="lexrag"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Unauthorized: " + err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalContextKey, p)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
