package app

import (
	"errors"
	"fmt"
	"time"

	"edustore/internal/util"
	"edustore/pkg/domain"
	"edustore/pkg/store"
)

// ToggleResult reports the state a bookmark toggle landed in.
type ToggleResult struct {
	IsBookmarked bool   `json:"isBookmarked"`
	Message      string `json:"message"`
}

// ListBookmarks returns the user's bookmarks, newest first, with the chapter,
// book, and subject attached.
func (a *App) ListBookmarks(userID string) ([]domain.Bookmark, error) {
	bookmarks, err := a.store.ListBookmarksByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	return bookmarks, nil
}

// IsBookmarked reports whether the user bookmarked the chapter.
func (a *App) IsBookmarked(userID, chapterID string) (bool, error) {
	_, ok, err := a.store.GetBookmark(userID, chapterID)
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return ok, nil
}

// ToggleBookmark flips the bookmark for (user, chapter). The DB unique
// constraint backstops the check-then-act: a concurrent duplicate insert
// comes back as ErrDuplicate and maps to the bookmarked outcome, so toggling
// is idempotent under races.
func (a *App) ToggleBookmark(userID, chapterID string) (ToggleResult, error) {
	if _, ok, err := a.store.GetChapter(chapterID); err != nil {
		return ToggleResult{}, fmt.Errorf("fetch chapter: %w", err)
	} else if !ok {
		return ToggleResult{}, ErrChapterNotFound
	}

	_, exists, err := a.store.GetBookmark(userID, chapterID)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("check bookmark: %w", err)
	}
	if exists {
		if _, err := a.store.DeleteBookmarks(userID, chapterID); err != nil {
			return ToggleResult{}, fmt.Errorf("remove bookmark: %w", err)
		}
		return ToggleResult{IsBookmarked: false, Message: "Bookmark removed"}, nil
	}

	bookmark := domain.Bookmark{
		ID:        util.NewID(),
		UserID:    userID,
		ChapterID: chapterID,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateBookmark(bookmark); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ToggleResult{IsBookmarked: true, Message: "Bookmark added"}, nil
		}
		return ToggleResult{}, fmt.Errorf("add bookmark: %w", err)
	}
	return ToggleResult{IsBookmarked: true, Message: "Bookmark added"}, nil
}

// RemoveBookmark deletes any bookmark for (user, chapter). Removing a
// bookmark that does not exist succeeds.
func (a *App) RemoveBookmark(userID, chapterID string) error {
	if _, err := a.store.DeleteBookmarks(userID, chapterID); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}
