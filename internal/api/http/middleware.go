package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/security"

	"github.com/go-chi/chi/v5/middleware"
)

type claimsKey struct{}

// Authenticate rejects requests without a valid bearer access token and
// stores the token claims in the request context.
func Authenticate(tm security.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respond(w, r, http.StatusUnauthorized, ErrorResponse{Error: "authorization token is not provided", Code: "unauthenticated"})
				return
			}

			claims, err := tm.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "Invalid token", "path", r.URL.Path, "error", err)
				respond(w, r, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "unauthenticated"})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = logger.NewContext(ctx, "userID", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.HasRole(role) {
				respond(w, r, http.StatusForbidden, ErrorResponse{Error: role + " role required", Code: "permission_denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.UserClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*security.UserClaims)
	return claims, ok
}

// requestLogger tags the request context with the chi request ID and logs
// each request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logger.NewContext(r.Context(), "requestID", middleware.GetReqID(r.Context()))

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.FromContext(ctx).Debug("HTTP request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"bytes", ww.BytesWritten(), "duration", time.Since(start))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:], true
	}
	return "", false
}
