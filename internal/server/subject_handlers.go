package server

import (
	"net/http"

	"edustore/pkg/domain"
)

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		subjects, err := s.app.ListSubjects(queryInt(r, "class"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
	case http.MethodPost:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		var req struct {
			Name  string `json:"name"`
			Class int    `json:"class"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		subject, err := s.app.CreateSubject(req.Name, req.Class)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"subject": subject})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSubjectByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := pathSuffix(r, "/api/subjects/")
	if id == "" {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		subject, err := s.app.GetSubject(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subject": subject})
	case http.MethodPut:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		var req struct {
			Name  *string `json:"name"`
			Class *int    `json:"class"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		subject, err := s.app.UpdateSubject(id, req.Name, req.Class)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subject": subject})
	case http.MethodDelete:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if err := s.app.DeleteSubject(id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Subject deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}
