package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go-time-archive/internal/model"
	"go-time-archive/pkg/apierror"
)

// bearerRealm names the protection space in WWW-Authenticate challenges.
const bearerRealm = "archiver"

type tokenValidator interface {
	Validate(tokenString string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

// AuthMiddleware guards the admin API with tokens minted by `archiver token`.
type AuthMiddleware struct {
	validator tokenValidator
	logger    *slog.Logger
}

func NewAuthMiddleware(validator tokenValidator, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{validator: validator, logger: logger}
}

// RequireAdmin admits requests carrying a valid admin access token and stores
// its claims in the request context.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			challenge(w, "", "missing or invalid authorization header")
			return
		}

		claims, err := m.validator.Validate(token)
		if err != nil {
			m.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
			challenge(w, "invalid_token", rejectReason(err))
			return
		}

		if !strings.EqualFold(claims.Role, model.RoleAdmin) {
			m.logger.Warn("non-admin token refused", "subject", claims.Subject, "role", claims.Role)
			writeError(w, http.StatusForbidden, "FORBIDDEN", "admin token required")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

// rejectReason keeps the validator's message for its own errors and hides
// anything else.
func rejectReason(err error) string {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "invalid or expired token"
}

func challenge(w http.ResponseWriter, code string, message string) {
	value := fmt.Sprintf("Bearer realm=%q", bearerRealm)
	if code != "" {
		value += fmt.Sprintf(", error=%q", code)
	}
	w.Header().Set("WWW-Authenticate", value)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}
