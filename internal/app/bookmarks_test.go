package app

import (
	"errors"
	"sync"
	"testing"
)

func TestToggleBookmarkRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)
	book := env.seedBook(t, subject.ID, "Science Class 6", 6)
	chapter := env.seedChapter(t, book.ID, 1, "Food: Where Does It Come From?", "")
	user := env.seedUser(t, "student@example.com")

	result, err := env.app.ToggleBookmark(user.ID, chapter.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !result.IsBookmarked || result.Message != "Bookmark added" {
		t.Fatalf("expected bookmark added, got %+v", result)
	}

	bookmarked, err := env.app.IsBookmarked(user.ID, chapter.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !bookmarked {
		t.Fatal("expected chapter to be bookmarked")
	}

	result, err = env.app.ToggleBookmark(user.ID, chapter.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if result.IsBookmarked || result.Message != "Bookmark removed" {
		t.Fatalf("expected bookmark removed, got %+v", result)
	}

	bookmarked, err = env.app.IsBookmarked(user.ID, chapter.ID)
	if err != nil {
		t.Fatalf("check after removal: %v", err)
	}
	if bookmarked {
		t.Fatal("expected bookmark gone after second toggle")
	}
}

func TestToggleBookmarkUnknownChapter(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "student@example.com")

	if _, err := env.app.ToggleBookmark(user.ID, "missing"); !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("expected chapter not found, got %v", err)
	}
}

func TestConcurrentTogglesNeverDuplicate(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Maths", 8)
	book := env.seedBook(t, subject.ID, "Mathematics Class 8", 8)
	chapter := env.seedChapter(t, book.ID, 1, "Rational Numbers", "")
	user := env.seedUser(t, "student@example.com")

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			if _, err := env.app.ToggleBookmark(user.ID, chapter.ID); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	bookmarks, err := env.app.ListBookmarks(user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bookmarks) > 1 {
		t.Fatalf("expected at most one bookmark row, got %d", len(bookmarks))
	}
}

func TestRemoveBookmarkIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "student@example.com")

	if err := env.app.RemoveBookmark(user.ID, "never-bookmarked"); err != nil {
		t.Fatalf("removing an absent bookmark should succeed, got %v", err)
	}
}

func TestListBookmarksAttachesChapter(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)
	book := env.seedBook(t, subject.ID, "Science Class 6", 6)
	chapter := env.seedChapter(t, book.ID, 2, "Components of Food", "")
	user := env.seedUser(t, "student@example.com")

	if _, err := env.app.ToggleBookmark(user.ID, chapter.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	bookmarks, err := env.app.ListBookmarks(user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bookmarks) != 1 {
		t.Fatalf("expected one bookmark, got %d", len(bookmarks))
	}
	got := bookmarks[0]
	if got.Chapter == nil || got.Chapter.ID != chapter.ID {
		t.Fatalf("expected chapter attached, got %+v", got.Chapter)
	}
}
