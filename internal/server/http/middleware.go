package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/google/uuid"
)

// unexported, collision-proof context key
type userIDContextKeyType struct{}

var userIDKey = userIDContextKeyType{}

// UserIDFromContext extracts the authenticated user id set by requireAuth.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// bearerToken extracts the token from the Authorization header. The result is
// empty when the header is absent or carries no credential after the scheme.
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth verifies the bearer token and stores the user id in the request
// context. A missing token is a 403, a failed verification a 401, and an
// unreachable denylist a 503: with the revocation state unreadable no token
// can be trusted.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.sessions.Verify(r.Context(), bearerToken(r))
		if err != nil {
			switch {
			case errors.Is(err, common.ErrTokenMissing):
				respondError(w, http.StatusForbidden, "Token is missing.")
			case errors.Is(err, common.ErrTokenRevoked):
				respondError(w, http.StatusUnauthorized, "Token is invalid or has been revoked.")
			case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrTokenInvalid):
				respondError(w, http.StatusUnauthorized, "Invalid token.")
			case errors.Is(err, common.ErrCacheUnavailable):
				respondError(w, http.StatusServiceUnavailable, "Service temporarily unavailable.")
			default:
				respondError(w, http.StatusInternalServerError, "Internal server error.")
			}
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger tags every request with a generated id and logs it on completion.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			w.Header().Set("X-Request-Id", requestID)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info(r.Context(), "request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}
