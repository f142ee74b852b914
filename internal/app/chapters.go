package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edustore/internal/util"
	"edustore/pkg/domain"
	"edustore/pkg/storage"
	"edustore/pkg/store"
)

// ChapterPage is a page of chapters with pagination metadata.
type ChapterPage struct {
	Chapters   []domain.Chapter `json:"chapters"`
	Pagination Pagination       `json:"pagination"`
}

// ChapterInput carries chapter fields from create/update requests.
type ChapterInput struct {
	BookID        *string
	ChapterNumber *int
	Title         *string
	Description   *string
	PageRange     *string
}

// ListChapters returns a filtered page of chapters ordered by number.
func (a *App) ListChapters(bookID, search string, page, limit int) (ChapterPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	chapters, total, err := a.store.ListChapters(store.ChapterFilter{
		BookID: bookID,
		Search: search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return ChapterPage{}, fmt.Errorf("list chapters: %w", err)
	}
	if chapters == nil {
		chapters = []domain.Chapter{}
	}
	return ChapterPage{Chapters: chapters, Pagination: makePagination(total, page, limit)}, nil
}

// GetChapter returns a chapter with its book and subject.
func (a *App) GetChapter(id string) (domain.Chapter, error) {
	chapter, ok, err := a.store.GetChapter(id)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok {
		return domain.Chapter{}, ErrChapterNotFound
	}
	return chapter, nil
}

// CreateChapter adds a chapter. Book, number, and title are required; the
// PDF and chapter image are optional uploads. One chapter per (book, number).
func (a *App) CreateChapter(ctx context.Context, input ChapterInput, pdfFile, image *FileUpload) (domain.Chapter, error) {
	bookID := derefTrimmed(input.BookID)
	number := derefInt(input.ChapterNumber)
	title := derefTrimmed(input.Title)
	if bookID == "" || number == 0 || title == "" {
		return domain.Chapter{}, validationErr("Book ID, chapter number, and title are required")
	}
	if number < 1 {
		return domain.Chapter{}, validationErr("Chapter number must be positive")
	}
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return domain.Chapter{}, fmt.Errorf("fetch book: %w", err)
	} else if !ok {
		return domain.Chapter{}, ErrBookNotFound
	}

	now := time.Now().UTC()
	chapter := domain.Chapter{
		ID:            util.NewID(),
		BookID:        bookID,
		ChapterNumber: number,
		Title:         title,
		Description:   derefTrimmed(input.Description),
		PageRange:     derefTrimmed(input.PageRange),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if pdfFile != nil {
		url, key, err := a.uploadObject(ctx, storage.FolderChapters, pdfFile)
		if err != nil {
			return domain.Chapter{}, err
		}
		chapter.PDFURL = url
		chapter.PDFKey = key
		chapter.FileSizeBytes = int64(len(pdfFile.Data))
		chapter.PageCount = pdfPageCount(pdfFile.Data)
	}
	if image != nil {
		url, _, err := a.uploadObject(ctx, storage.FolderChapterImages, image)
		if err != nil {
			if chapter.PDFKey != "" {
				a.deleteObject(ctx, chapter.PDFKey)
			}
			return domain.Chapter{}, err
		}
		chapter.ChapterImageURL = url
	}

	if err := a.store.CreateChapter(chapter); err != nil {
		if chapter.PDFKey != "" {
			a.deleteObject(ctx, chapter.PDFKey)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Chapter{}, ErrChapterExists
		}
		return domain.Chapter{}, fmt.Errorf("create chapter: %w", err)
	}
	return a.GetChapter(chapter.ID)
}

// UpdateChapter applies a partial update. A replacement PDF deletes the old
// object first (best-effort), then the new one is recorded.
func (a *App) UpdateChapter(ctx context.Context, id string, input ChapterInput, pdfFile, image *FileUpload) (domain.Chapter, error) {
	chapter, ok, err := a.store.GetChapter(id)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok {
		return domain.Chapter{}, ErrChapterNotFound
	}
	if v := derefInt(input.ChapterNumber); v != 0 {
		if v < 1 {
			return domain.Chapter{}, validationErr("Chapter number must be positive")
		}
		chapter.ChapterNumber = v
	}
	if v := derefTrimmed(input.Title); v != "" {
		chapter.Title = v
	}
	if input.Description != nil {
		chapter.Description = strings.TrimSpace(*input.Description)
	}
	if input.PageRange != nil {
		chapter.PageRange = strings.TrimSpace(*input.PageRange)
	}
	if pdfFile != nil {
		if chapter.PDFKey != "" {
			a.deleteObject(ctx, chapter.PDFKey)
		}
		url, key, err := a.uploadObject(ctx, storage.FolderChapters, pdfFile)
		if err != nil {
			return domain.Chapter{}, err
		}
		chapter.PDFURL = url
		chapter.PDFKey = key
		chapter.FileSizeBytes = int64(len(pdfFile.Data))
		chapter.PageCount = pdfPageCount(pdfFile.Data)
	}
	if image != nil {
		url, _, err := a.uploadObject(ctx, storage.FolderChapterImages, image)
		if err != nil {
			return domain.Chapter{}, err
		}
		chapter.ChapterImageURL = url
	}
	chapter.UpdatedAt = time.Now().UTC()
	chapter.Book = nil
	if err := a.store.UpdateChapter(chapter); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Chapter{}, ErrChapterExists
		}
		return domain.Chapter{}, fmt.Errorf("update chapter: %w", err)
	}
	return a.GetChapter(id)
}

// DeleteChapter removes a chapter after a best-effort delete of its PDF.
func (a *App) DeleteChapter(ctx context.Context, id string) error {
	chapter, ok, err := a.store.GetChapter(id)
	if err != nil {
		return fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok {
		return ErrChapterNotFound
	}
	if chapter.PDFKey != "" {
		a.deleteObject(ctx, chapter.PDFKey)
	}
	if err := a.store.DeleteChapter(id); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return nil
}
