package server

import (
	"net/http"

	"edustore/internal/app"
	"edustore/pkg/domain"
)

func (s *Server) handleChatbotAsk(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.chatLimiter, "too many chatbot requests") {
		return
	}
	var req struct {
		Question  string         `json:"question"`
		ChapterID string         `json:"chapterId"`
		History   []app.ChatTurn `json:"chatHistory"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	answer, err := s.app.AskChapterQuestion(r.Context(), user, req.ChapterID, req.Question, req.History)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleQuickAnswer(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.chatLimiter, "too many chatbot requests") {
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	answer, err := s.app.QuickAnswer(r.Context(), req.Question)
	if err != nil {
		if err == app.ErrQuestionRequired {
			writeAppError(w, err)
			return
		}
		writeAppError(w, app.ErrAIUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	chapterID := pathSuffix(r, "/api/chatbot/history/")
	if chapterID == "" {
		notFound(w, "not found")
		return
	}
	messages, err := s.app.ChatHistory(user.ID, chapterID, queryInt(r, "limit"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
