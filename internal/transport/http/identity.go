package http

import (
	"context"
	"net/http"
	"strconv"

	"quiz-attempt-service/internal/domain"
)

const (
	headerUserID  = "X-User-ID"
	headerIsAdmin = "X-User-Admin"
)

type userKey struct{}

// requireUser reads the caller identity set by the upstream auth layer.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + headerUserID, Code: "unauthorized"})
			return
		}
		admin, _ := strconv.ParseBool(r.Header.Get(headerIsAdmin))
		user := domain.User{ID: id, IsAdmin: admin}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFrom(r).IsAdmin {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin only", Code: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(r *http.Request) domain.User {
	user, _ := r.Context().Value(userKey{}).(domain.User)
	return user
}
