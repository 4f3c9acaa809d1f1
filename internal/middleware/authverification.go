package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/chartflow/import-server/internal/oauth"
	"github.com/chartflow/import-server/pkg/sloger"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

type AuthMiddleware struct {
	AuthEnabled bool
	Validator   oauth.Validator
}

// VerifyTokenMiddleware rejects requests whose Authorization bearer token does
// not verify. When auth is disabled the handler is returned untouched.
func (m *AuthMiddleware) VerifyTokenMiddleware(next http.Handler) http.Handler {
	if !m.AuthEnabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "authorization header missing", http.StatusUnauthorized)
			return
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			http.Error(w, "authorization header must be a bearer token", http.StatusUnauthorized)
			return
		}
		if strings.Count(token, ".") != 2 {
			http.Error(w, "malformed token", http.StatusUnauthorized)
			return
		}

		if err := m.Validator.ValidateToken(r.Context(), token); err != nil {
			var scopesErr *oauth.MissingScopesError
			var verifyErr *oauth.TokenVerificationError
			switch {
			case errors.As(err, &scopesErr):
				http.Error(w, scopesErr.Error(), http.StatusForbidden)
			case errors.As(err, &verifyErr):
				http.Error(w, "token verification failed", http.StatusUnauthorized)
			default:
				logger.Error("unexpected error validating token", "error", err)
				http.Error(w, "internal error validating token", http.StatusInternalServerError)
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}
