package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hyperjump/yomu/internal/config"
)

// ErrUnauthenticated is returned for credentials that do not resolve to a user.
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthProvider resolves the user behind a request. It returns "" and a nil
// error for anonymous requests.
type AuthProvider interface {
	Authenticate(r *http.Request) (string, error)
}

// TokenAuth maps static bearer tokens to user ids.
type TokenAuth struct {
	tokens      map[string]string
	allowHeader bool
}

// NewTokenAuth creates a TokenAuth from cfg.
func NewTokenAuth(cfg config.AuthConfig) *TokenAuth {
	tokens := make(map[string]string, len(cfg.Tokens))
	for k, v := range cfg.Tokens {
		tokens[k] = v
	}
	return &TokenAuth{tokens: tokens, allowHeader: cfg.AllowUserHeader}
}

// Authenticate implements AuthProvider. A presented but unknown token is an
// error even when the X-User-ID header is allowed.
func (a *TokenAuth) Authenticate(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return "", ErrUnauthenticated
		}
		user, ok := a.tokens[strings.TrimSpace(token)]
		if !ok || user == "" {
			return "", ErrUnauthenticated
		}
		return user, nil
	}
	if a.allowHeader {
		return strings.TrimSpace(r.Header.Get("X-User-ID")), nil
	}
	return "", nil
}

type userKey struct{}

// UserFromContext returns the authenticated user id, or "".
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.deps.Auth.Authenticate(r)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if user != "" {
			r = r.WithContext(context.WithValue(r.Context(), userKey{}, user))
		}
		next.ServeHTTP(w, r)
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == "" {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
