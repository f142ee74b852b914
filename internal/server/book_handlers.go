package server

import (
	"net/http"

	"edustore/internal/app"
	"edustore/pkg/domain"
)

func bookInputFromForm(form *formRequest) app.BookInput {
	return app.BookInput{
		Title:       form.strField("title"),
		Description: form.strField("description"),
		Class:       form.intField("class"),
		SubjectID:   form.strField("subjectId"),
		Publisher:   form.strField("publisher"),
		Edition:     form.strField("edition"),
		Year:        form.intField("year"),
	}
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		page, err := s.app.ListBooks(queryInt(r, "class"), q.Get("subjectId"), q.Get("search"), queryInt(r, "page"), queryInt(r, "limit"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		form, err := s.parseForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		cover, err := form.file("coverImage")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cover image upload")
			return
		}
		book, err := s.app.CreateBook(r.Context(), bookInputFromForm(form), cover)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"book": book})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := pathSuffix(r, "/api/books/")
	if id == "" {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"book": book})
	case http.MethodPut:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		form, err := s.parseForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		cover, err := form.file("coverImage")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cover image upload")
			return
		}
		book, err := s.app.UpdateBook(r.Context(), id, bookInputFromForm(form), cover)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"book": book})
	case http.MethodDelete:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if err := s.app.DeleteBook(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Book deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}
