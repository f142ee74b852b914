package server

import (
	"net/http"

	"edustore/internal/app"
	"edustore/pkg/domain"
)

func chapterInputFromForm(form *formRequest) app.ChapterInput {
	return app.ChapterInput{
		BookID:        form.strField("bookId"),
		ChapterNumber: form.intField("chapterNumber"),
		Title:         form.strField("title"),
		Description:   form.strField("description"),
		PageRange:     form.strField("pageRange"),
	}
}

func (s *Server) chapterUploads(w http.ResponseWriter, form *formRequest) (pdf, image *app.FileUpload, ok bool) {
	pdf, err := form.file("pdfFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pdf upload")
		return nil, nil, false
	}
	image, err = form.file("chapterImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chapter image upload")
		return nil, nil, false
	}
	return pdf, image, true
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		page, err := s.app.ListChapters(q.Get("bookId"), q.Get("search"), queryInt(r, "page"), queryInt(r, "limit"))
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
		pdf, image, ok := s.chapterUploads(w, form)
		if !ok {
			return
		}
		chapter, err := s.app.CreateChapter(r.Context(), chapterInputFromForm(form), pdf, image)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"chapter": chapter})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChapterByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := pathSuffix(r, "/api/chapters/")
	if id == "" {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		chapter, err := s.app.GetChapter(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chapter": chapter})
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
		pdf, image, ok := s.chapterUploads(w, form)
		if !ok {
			return
		}
		chapter, err := s.app.UpdateChapter(r.Context(), id, chapterInputFromForm(form), pdf, image)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chapter": chapter})
	case http.MethodDelete:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if err := s.app.DeleteChapter(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Chapter deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}
