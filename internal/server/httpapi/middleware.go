package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/server/auth"
	"github.com/fortifile/fortifile/internal/server/models"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "userID"
	ctxKeyRole   ctxKey = "role"
)

// session returns the authenticated user ID and admin flag from the request
// context.
func session(r *http.Request) (userID string, isAdmin bool) {
	userID, _ = r.Context().Value(ctxKeyUserID).(string)
	role, _ := r.Context().Value(ctxKeyRole).(string)
	return userID, role == models.RoleAdmin
}

// authMiddleware validates the bearer token and stores the caller identity
// in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, r, common.ErrorUnauthorized)
			return
		}

		claims, err := auth.ParseToken(token, s.secret)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxKeyRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly rejects non-admin callers with 403.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, isAdmin := session(r); !isAdmin {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
