package server

import (
	"net/http"

	"edustore/pkg/domain"
)

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	id := pathSuffix(r, "/api/users/")
	if id == "" {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Role   *domain.UserRole   `json:"role"`
			Status *domain.UserStatus `json:"status"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user, err := s.app.AdminUpdateUser(admin, id, req.Role, req.Status)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	case http.MethodDelete:
		if err := s.app.AdminDeleteUser(admin, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}
