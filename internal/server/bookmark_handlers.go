package server

import (
	"net/http"
	"strings"

	"edustore/pkg/domain"
)

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	bookmarks, err := s.app.ListBookmarks(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

// handleBookmarkByPath serves check/{chapterId}, toggle/{chapterId}, and
// DELETE {chapterId}.
func (s *Server) handleBookmarkByPath(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := pathSuffix(r, "/api/bookmarks/")
	switch {
	case strings.HasPrefix(rest, "check/"):
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		chapterID := strings.TrimPrefix(rest, "check/")
		bookmarked, err := s.app.IsBookmarked(user.ID, chapterID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"isBookmarked": bookmarked})
	case strings.HasPrefix(rest, "toggle/"):
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		chapterID := strings.TrimPrefix(rest, "toggle/")
		result, err := s.app.ToggleBookmark(user.ID, chapterID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case rest != "" && !strings.Contains(rest, "/"):
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		if err := s.app.RemoveBookmark(user.ID, rest); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Bookmark removed"})
	default:
		notFound(w, "not found")
	}
}
