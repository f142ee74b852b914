package app

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func pngUpload(name string) *FileUpload {
	return &FileUpload{Name: name, ContentType: "image/png", Data: []byte("png-bytes")}
}

func pdfUpload(name string) *FileUpload {
	return &FileUpload{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4 fake")}
}

func TestCreateBookRequiresCover(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)

	input := BookInput{Title: strPtr("Science Class 6"), Class: intPtr(6), SubjectID: strPtr(subject.ID)}
	if _, err := env.app.CreateBook(context.Background(), input, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error without cover, got %v", err)
	}
}

func TestCreateBookUploadsCoverAndDefaultsPublisher(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)

	input := BookInput{Title: strPtr("Science Class 6"), Class: intPtr(6), SubjectID: strPtr(subject.ID)}
	book, err := env.app.CreateBook(context.Background(), input, pngUpload("cover.png"))
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if book.Publisher != "NCERT" {
		t.Fatalf("expected default publisher NCERT, got %q", book.Publisher)
	}
	if book.CoverImageURL == "" {
		t.Fatal("expected cover image URL")
	}
	puts := env.objects.PutCalls()
	if len(puts) != 1 || !strings.HasPrefix(puts[0], "covers/") {
		t.Fatalf("expected one covers/ upload, got %v", puts)
	}
}

func TestCreateBookUnknownSubject(t *testing.T) {
	env := newTestEnv(t)
	input := BookInput{Title: strPtr("Orphan"), Class: intPtr(6), SubjectID: strPtr("missing")}
	if _, err := env.app.CreateBook(context.Background(), input, pngUpload("cover.png")); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("expected subject not found, got %v", err)
	}
}

func TestCreateBookRejectsClassOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)
	input := BookInput{Title: strPtr("Bad"), Class: intPtr(13), SubjectID: strPtr(subject.ID)}
	if _, err := env.app.CreateBook(context.Background(), input, pngUpload("cover.png")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for class 13, got %v", err)
	}
}

func TestDeleteBookRemovesChapterPDFs(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)
	book := env.seedBook(t, subject.ID, "Science Class 6", 6)
	ch1 := env.seedChapter(t, book.ID, 1, "One", "chapters/1-one.pdf")
	ch2 := env.seedChapter(t, book.ID, 2, "Two", "chapters/2-two.pdf")
	env.seedChapter(t, book.ID, 3, "Three", "")

	if err := env.app.DeleteBook(context.Background(), book.ID); err != nil {
		t.Fatalf("delete book: %v", err)
	}
	calls := env.objects.DeleteCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 object deletes, got %v", calls)
	}
	for _, key := range []string{ch1.PDFKey, ch2.PDFKey} {
		found := false
		for _, call := range calls {
			if call == key {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected delete for %q, calls %v", key, calls)
		}
	}
	if _, err := env.app.GetBook(book.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected book gone, got %v", err)
	}
}

func TestDeleteBookProceedsPastObjectDeleteFailure(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)
	book := env.seedBook(t, subject.ID, "Science Class 6", 6)
	ch := env.seedChapter(t, book.ID, 1, "One", "chapters/1-one.pdf")
	env.objects.FailDelete = map[string]bool{ch.PDFKey: true}

	if err := env.app.DeleteBook(context.Background(), book.ID); err != nil {
		t.Fatalf("delete book should survive object delete failure: %v", err)
	}
	if _, err := env.app.GetBook(book.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected book gone, got %v", err)
	}
}

func TestCreateChapterRollsBackPDFOnDuplicate(t *testing.T) {
	env := newTestEnv(t)
	subject := env.seedSubject(t, "Science", 6)
	book := env.seedBook(t, subject.ID, "Science Class 6", 6)
	env.seedChapter(t, book.ID, 1, "One", "")

	input := ChapterInput{BookID: strPtr(book.ID), ChapterNumber: intPtr(1), Title: strPtr("Duplicate")}
	if _, err := env.app.CreateChapter(context.Background(), input, pdfUpload("dup.pdf"), nil); !errors.Is(err, ErrChapterExists) {
		t.Fatalf("expected duplicate chapter error, got %v", err)
	}
	for _, key := range env.objects.PutCalls() {
		if env.objects.Has(key) {
			t.Fatalf("expected uploaded object %q to be rolled back", key)
		}
	}
}

func TestCreateSubjectDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubject(t, "Science", 6)
	if _, err := env.app.CreateSubject("Science", 6); !errors.Is(err, ErrSubjectExists) {
		t.Fatalf("expected subject exists error, got %v", err)
	}
	// Same name in a different class is fine.
	if _, err := env.app.CreateSubject("Science", 7); err != nil {
		t.Fatalf("same name different class should succeed: %v", err)
	}
}
