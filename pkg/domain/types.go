package domain

import "time"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// MinClass and MaxClass bound the valid NCERT class range.
const (
	MinClass = 1
	MaxClass = 12
)

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Class     int       `json:"class"`
	BookCount int       `json:"bookCount"`
	Books     []Book    `json:"books,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Class         int       `json:"class"`
	SubjectID     string    `json:"subjectId"`
	Subject       *Subject  `json:"subject,omitempty"`
	Publisher     string    `json:"publisher"`
	Edition       string    `json:"edition,omitempty"`
	Year          int       `json:"year,omitempty"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	ChapterCount  int       `json:"chapterCount"`
	Chapters      []Chapter `json:"chapters,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Chapter struct {
	ID              string    `json:"id"`
	BookID          string    `json:"bookId"`
	Book            *Book     `json:"book,omitempty"`
	ChapterNumber   int       `json:"chapterNumber"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	PageRange       string    `json:"pageRange,omitempty"`
	PageCount       int       `json:"pageCount,omitempty"`
	ChapterImageURL string    `json:"chapterImage,omitempty"`
	PDFURL          string    `json:"pdfUrl,omitempty"`
	PDFKey          string    `json:"-"`
	FileSizeBytes   int64     `json:"fileSize,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ChapterID string    `json:"chapterId"`
	Chapter   *Chapter  `json:"chapter,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatMessage is one turn of a tutoring conversation, logged per user.
type ChatMessage struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	ChapterID string            `json:"chapterId"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SearchKind tags entries of the flat search result list.
type SearchKind string

const (
	KindClass   SearchKind = "class"
	KindSubject SearchKind = "subject"
	KindBook    SearchKind = "book"
	KindChapter SearchKind = "chapter"
)

// SearchResult is one entry of the merged search list. Exactly one payload
// field is set, matching Kind.
type SearchResult struct {
	Kind    SearchKind `json:"kind"`
	Class   int        `json:"class,omitempty"`
	Subject *Subject   `json:"subject,omitempty"`
	Book    *Book      `json:"book,omitempty"`
	Chapter *Chapter   `json:"chapter,omitempty"`
}
