package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"edustore/internal/util"
	"edustore/pkg/ai"
	"edustore/pkg/domain"
	"edustore/pkg/storage"
	"edustore/pkg/store"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type fakeGenerator struct {
	mu        sync.Mutex
	response  string
	err       error
	chatCalls [][]ai.Message
	textCalls []string
}

func (g *fakeGenerator) GenerateText(_ context.Context, _, _, userPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.textCalls = append(g.textCalls, userPrompt)
	return g.response, g.err
}

func (g *fakeGenerator) GenerateChat(_ context.Context, _ string, turns []ai.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chatCalls = append(g.chatCalls, turns)
	return g.response, g.err
}

func (g *fakeGenerator) lastChatCall() []ai.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.chatCalls) == 0 {
		return nil
	}
	return g.chatCalls[len(g.chatCalls)-1]
}

type testEnv struct {
	app       *App
	store     *store.MemoryStore
	objects   *storage.MemoryObjectStore
	generator *fakeGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dataStore := store.NewMemoryStore()
	objects := storage.NewMemoryObjectStore()
	generator := &fakeGenerator{response: "ok"}

	sessions, err := store.NewJWTSessionStore(testJWTSecret, 15*time.Minute, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a, err := New(Config{
		Store:         dataStore,
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
		Objects:       objects,
		Generator:     generator,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &testEnv{app: a, store: dataStore, objects: objects, generator: generator}
}

func (e *testEnv) seedSubject(t *testing.T, name string, class int) domain.Subject {
	t.Helper()
	subject, err := e.app.CreateSubject(name, class)
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	return subject
}

func (e *testEnv) seedBook(t *testing.T, subjectID, title string, class int) domain.Book {
	t.Helper()
	now := time.Now().UTC()
	book := domain.Book{
		ID:        util.NewID(),
		Title:     title,
		Class:     class,
		SubjectID: subjectID,
		Publisher: "NCERT",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateBook(book); err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func (e *testEnv) seedChapter(t *testing.T, bookID string, number int, title, pdfKey string) domain.Chapter {
	t.Helper()
	now := time.Now().UTC()
	chapter := domain.Chapter{
		ID:            util.NewID(),
		BookID:        bookID,
		ChapterNumber: number,
		Title:         title,
		PDFKey:        pdfKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.CreateChapter(chapter); err != nil {
		t.Fatalf("seed chapter: %v", err)
	}
	return chapter
}

func (e *testEnv) seedUser(t *testing.T, email string) domain.User {
	t.Helper()
	user, _, _, err := e.app.SignUp("Test User", email, "secret1")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}
