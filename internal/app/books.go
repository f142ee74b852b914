package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"edustore/internal/util"
	"edustore/pkg/domain"
	"edustore/pkg/storage"
	"edustore/pkg/store"
)

// BookPage is a page of books with pagination metadata.
type BookPage struct {
	Books      []domain.Book `json:"books"`
	Pagination Pagination    `json:"pagination"`
}

// Pagination echoes the requested page and the totals.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

func makePagination(total int64, page, limit int) Pagination {
	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

// BookInput carries book fields from create/update requests. Nil pointers
// mean "not provided" on update.
type BookInput struct {
	Title       *string
	Description *string
	Class       *int
	SubjectID   *string
	Publisher   *string
	Edition     *string
	Year        *int
}

// ListBooks returns a filtered page of books, newest first.
func (a *App) ListBooks(class int, subjectID, search string, page, limit int) (BookPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	books, total, err := a.store.ListBooks(store.BookFilter{
		Class:     class,
		SubjectID: subjectID,
		Search:    search,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return BookPage{}, fmt.Errorf("list books: %w", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return BookPage{Books: books, Pagination: makePagination(total, page, limit)}, nil
}

// GetBook returns a book with its subject and chapters.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// CreateBook adds a book. Title, class, and subject are required, and the
// cover image must be provided; it is uploaded before the row is written.
func (a *App) CreateBook(ctx context.Context, input BookInput, cover *FileUpload) (domain.Book, error) {
	title := derefTrimmed(input.Title)
	class := derefInt(input.Class)
	subjectID := derefTrimmed(input.SubjectID)
	if title == "" || class == 0 || subjectID == "" {
		return domain.Book{}, validationErr("Title, class, and subject are required")
	}
	if class < domain.MinClass || class > domain.MaxClass {
		return domain.Book{}, validationErr("Class must be between 1 and 12")
	}
	if cover == nil {
		return domain.Book{}, validationErr("Cover image is required")
	}
	if _, ok, err := a.store.GetSubject(subjectID); err != nil {
		return domain.Book{}, fmt.Errorf("fetch subject: %w", err)
	} else if !ok {
		return domain.Book{}, ErrSubjectNotFound
	}

	coverURL, coverKey, err := a.uploadObject(ctx, storage.FolderCovers, cover)
	if err != nil {
		return domain.Book{}, err
	}

	publisher := derefTrimmed(input.Publisher)
	if publisher == "" {
		publisher = "NCERT"
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:            util.NewID(),
		Title:         title,
		Description:   derefTrimmed(input.Description),
		Class:         class,
		SubjectID:     subjectID,
		Publisher:     publisher,
		Edition:       derefTrimmed(input.Edition),
		Year:          derefInt(input.Year),
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.CreateBook(book); err != nil {
		a.deleteObject(ctx, coverKey)
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	return a.GetBook(book.ID)
}

// UpdateBook applies a partial update. A new cover replaces the URL; the old
// cover object is left in place.
func (a *App) UpdateBook(ctx context.Context, id string, input BookInput, cover *FileUpload) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if v := derefTrimmed(input.Title); v != "" {
		book.Title = v
	}
	if input.Description != nil {
		book.Description = strings.TrimSpace(*input.Description)
	}
	if v := derefInt(input.Class); v != 0 {
		if v < domain.MinClass || v > domain.MaxClass {
			return domain.Book{}, validationErr("Class must be between 1 and 12")
		}
		book.Class = v
	}
	if v := derefTrimmed(input.SubjectID); v != "" {
		if _, ok, err := a.store.GetSubject(v); err != nil {
			return domain.Book{}, fmt.Errorf("fetch subject: %w", err)
		} else if !ok {
			return domain.Book{}, ErrSubjectNotFound
		}
		book.SubjectID = v
	}
	if v := derefTrimmed(input.Publisher); v != "" {
		book.Publisher = v
	}
	if input.Edition != nil {
		book.Edition = strings.TrimSpace(*input.Edition)
	}
	if v := derefInt(input.Year); v != 0 {
		book.Year = v
	}
	if cover != nil {
		coverURL, _, err := a.uploadObject(ctx, storage.FolderCovers, cover)
		if err != nil {
			return domain.Book{}, err
		}
		book.CoverImageURL = coverURL
	}
	book.UpdatedAt = time.Now().UTC()
	book.Subject = nil
	book.Chapters = nil
	if err := a.store.UpdateBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return a.GetBook(id)
}

// DeleteBook removes a book. Every chapter PDF gets a best-effort object
// delete before the row goes away; a failed delete is queued for retry and
// never blocks removal. Chapters are removed with the book.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	for _, chapter := range book.Chapters {
		if chapter.PDFKey != "" {
			a.deleteObject(ctx, chapter.PDFKey)
		}
	}
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

func derefTrimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
