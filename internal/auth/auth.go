// Package auth gates WebSocket upgrades and admin calls on the configured
// credential mode. It only validates credentials presented on the request;
// token issuance and room-level permissions live outside this service.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openmeet/signaling/internal/config"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authorizer decides whether a request may proceed.
type Authorizer interface {
	Authorize(r *http.Request) error
}

func NewAuthorizer(cfg config.Config) (Authorizer, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone:
		return AllowAll{}, nil
	case config.AuthModeAPIKey:
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" {
			return nil, fmt.Errorf("auth mode %s requires an api key", cfg.AuthMode)
		}
		return apiKeyAuthorizer{key: key}, nil
	case config.AuthModeJWT:
		secret := strings.TrimSpace(cfg.JWTSecret)
		if secret == "" {
			return nil, fmt.Errorf("auth mode %s requires a secret", cfg.AuthMode)
		}
		return jwtAuthorizer{secret: []byte(secret)}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// AllowAll accepts every request.
type AllowAll struct{}

func (AllowAll) Authorize(*http.Request) error { return nil }

type apiKeyAuthorizer struct {
	key string
}

func (a apiKeyAuthorizer) Authorize(r *http.Request) error {
	cred := credentialFromRequest(r)
	if cred == "" {
		return ErrMissingCredentials
	}
	if subtle.ConstantTimeCompare([]byte(cred), []byte(a.key)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// credentialFromRequest extracts the presented credential. Browsers cannot
// set headers on WebSocket upgrades, so the query string is checked first.
func credentialFromRequest(r *http.Request) string {
	q := r.URL.Query()
	if v := q.Get("access_token"); v != "" {
		return v
	}
	if v := q.Get("api_key"); v != "" {
		return v
	}
	authz := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
