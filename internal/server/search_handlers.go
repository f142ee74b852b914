package server

import (
	"net/http"

	"edustore/internal/app"
	"edustore/pkg/domain"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query().Get("q")
	results, err := s.app.Search(r.Context(), query)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		app.SearchResults
		Flat []domain.SearchResult `json:"flat"`
	}{results, results.Flatten()})
}
