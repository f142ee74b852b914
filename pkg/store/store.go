package store

import (
	"errors"
	"time"

	"edustore/pkg/domain"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// (subject name+class, chapter number per book, bookmark per user+chapter,
// user email).
var ErrDuplicate = errors.New("duplicate record")

// BookFilter narrows and pages ListBooks.
type BookFilter struct {
	Class     int
	SubjectID string
	Search    string
	Offset    int
	Limit     int
}

// ChapterFilter narrows and pages ListChapters.
type ChapterFilter struct {
	BookID string
	Search string
	Offset int
	Limit  int
}

// Store defines persistence operations for users, subjects, books, chapters,
// bookmarks, and the chat log.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	UserCount() (int, error)
	DeleteUser(id string) error

	// subjects
	CreateSubject(domain.Subject) error
	UpdateSubject(domain.Subject) error
	GetSubject(id string) (domain.Subject, bool, error)
	ListSubjects(class int) ([]domain.Subject, error)
	DeleteSubject(id string) error

	// books
	CreateBook(domain.Book) error
	UpdateBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks(BookFilter) ([]domain.Book, int64, error)
	DeleteBook(id string) error

	// chapters
	CreateChapter(domain.Chapter) error
	UpdateChapter(domain.Chapter) error
	GetChapter(id string) (domain.Chapter, bool, error)
	ListChapters(ChapterFilter) ([]domain.Chapter, int64, error)
	ListChaptersByBook(bookID string) ([]domain.Chapter, error)
	DeleteChapter(id string) error

	// bookmarks
	CreateBookmark(domain.Bookmark) error
	GetBookmark(userID, chapterID string) (domain.Bookmark, bool, error)
	ListBookmarksByUser(userID string) ([]domain.Bookmark, error)
	DeleteBookmarks(userID, chapterID string) (int64, error)

	// chat log
	AppendChatMessage(domain.ChatMessage) error
	ListChatMessages(userID, chapterID string, limit int) ([]domain.ChatMessage, error)
}

// SessionStore issues and validates access tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user since a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}
