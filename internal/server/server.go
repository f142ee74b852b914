package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"edustore/internal/app"
	"edustore/internal/ratelimit"
	"edustore/internal/util"
	"edustore/pkg/auth"
	"edustore/pkg/domain"
)

// Config wires required dependencies for the HTTP server. The limiters and
// TrustedProxies are optional; a nil limiter disables that quota.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
	AuthLimiter    *ratelimit.FixedWindowLimiter
	ChatLimiter    *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the REST API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	authLimiter    *ratelimit.FixedWindowLimiter
	chatLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		authLimiter:    cfg.AuthLimiter,
		chatLimiter:    cfg.ChatLimiter,
		trustedProxies: cfg.TrustedProxies,
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.Handle("/api/auth/logout", s.withUser(s.handleLogout))
	s.mux.Handle("/api/auth/me", s.withUser(s.handleMe))
	s.mux.Handle("/api/auth/profile", s.withUser(s.handleProfile))
	s.mux.Handle("/api/auth/password", s.withUser(s.handlePassword))

	// subjects
	s.mux.Handle("/api/subjects", s.withUser(s.handleSubjects))
	s.mux.Handle("/api/subjects/", s.withUser(s.handleSubjectByID))

	// books
	s.mux.Handle("/api/books", s.withUser(s.handleBooks))
	s.mux.Handle("/api/books/", s.withUser(s.handleBookByID))

	// chapters
	s.mux.Handle("/api/chapters", s.withUser(s.handleChapters))
	s.mux.Handle("/api/chapters/", s.withUser(s.handleChapterByID))

	// bookmarks
	s.mux.Handle("/api/bookmarks", s.withUser(s.handleBookmarks))
	s.mux.Handle("/api/bookmarks/", s.withUser(s.handleBookmarkByPath))

	// search
	s.mux.Handle("/api/search", s.withUser(s.handleSearch))

	// chatbot
	s.mux.Handle("/api/chatbot/ask", s.withUser(s.handleChatbotAsk))
	s.mux.Handle("/api/chatbot/quick-answer", s.withUser(s.handleQuickAnswer))
	s.mux.Handle("/api/chatbot/history/", s.withUser(s.handleChatHistory))

	// users (admin)
	s.mux.Handle("/api/users", s.withAdmin(s.handleUsers))
	s.mux.Handle("/api/users/", s.withAdmin(s.handleUserByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) withAdmin(next userHandler) http.Handler {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

// allowRate enforces a per-(path, client IP) quota. A nil limiter allows
// everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

// writeAppError maps application errors to HTTP responses.
func writeAppError(w http.ResponseWriter, err error) {
	var validation *app.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrEmailRequired),
		errors.Is(err, app.ErrCurrentPasswordRequired),
		errors.Is(err, app.ErrNewPasswordRequired),
		errors.Is(err, app.ErrRefreshTokenRequired),
		errors.Is(err, app.ErrQuestionRequired),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrSubjectExists),
		errors.Is(err, app.ErrChapterExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrUserDisabled):
		// Presented as a credential failure to avoid account enumeration.
		writeError(w, http.StatusUnauthorized, app.ErrInvalidCredentials.Error())
	case errors.Is(err, app.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrSubjectNotFound),
		errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrChapterNotFound),
		errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrAIUnavailable):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == strings.ToLower(app.ErrInvalidCredentials.Error()):
		return "AUTH_INVALID_CREDENTIALS"
	case message == "invalid refresh token", message == "refresh token required":
		return "AUTH_INVALID_REFRESH_TOKEN"
	case message == "email already exists":
		return "AUTH_EMAIL_EXISTS"
	case message == "forbidden":
		return "AUTH_FORBIDDEN"
	case strings.Contains(message, "subject already exists"):
		return "SUBJECT_ALREADY_EXISTS"
	case message == "subject not found":
		return "SUBJECT_NOT_FOUND"
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case strings.Contains(message, "chapter number already exists"):
		return "CHAPTER_ALREADY_EXISTS"
	case message == "chapter not found":
		return "CHAPTER_NOT_FOUND"
	case message == "user not found":
		return "USER_NOT_FOUND"
	case message == "failed to process your question", message == "failed to get ai answer":
		return "CHATBOT_UNAVAILABLE"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "AUTH_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
}
