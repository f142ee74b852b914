package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type SubjectModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null;uniqueIndex:idx_subject_name_class"`
	Class     int    `gorm:"not null;uniqueIndex:idx_subject_name_class"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type BookModel struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Description   string `gorm:"type:text"`
	Class         int    `gorm:"not null;index"`
	SubjectID     string `gorm:"not null;index"`
	Subject       *SubjectModel
	Publisher     string
	Edition       string
	Year          int
	CoverImageURL string
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time
	Chapters      []ChapterModel `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
}

type ChapterModel struct {
	ID              string `gorm:"primaryKey"`
	BookID          string `gorm:"not null;uniqueIndex:idx_chapter_book_number;index"`
	Book            *BookModel
	ChapterNumber   int    `gorm:"not null;uniqueIndex:idx_chapter_book_number"`
	Title           string `gorm:"not null"`
	Description     string `gorm:"type:text"`
	PageRange       string
	PageCount       int
	ChapterImageURL string
	PDFURL          string
	PDFKey          string
	FileSizeBytes   int64
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time
}

type BookmarkModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;uniqueIndex:idx_bookmark_user_chapter;index"`
	ChapterID string `gorm:"not null;uniqueIndex:idx_bookmark_user_chapter"`
	Chapter   *ChapterModel `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type ChatMessageModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index:idx_chat_user_chapter"`
	ChapterID string `gorm:"not null;index:idx_chat_user_chapter"`
	Role      string `gorm:"not null"`
	Content   string `gorm:"type:text;not null"`
	Context   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"not null;index"`
}
