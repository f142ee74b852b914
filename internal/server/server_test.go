package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edustore/internal/app"
	"edustore/pkg/ai"
	"edustore/pkg/storage"
	"edustore/pkg/store"
)

type staticGenerator struct {
	response string
}

func (g staticGenerator) GenerateText(context.Context, string, string, string) (string, error) {
	return g.response, nil
}

func (g staticGenerator) GenerateChat(context.Context, string, []ai.Message) (string, error) {
	return g.response, nil
}

// recordingGenerator keeps every chat call so tests can inspect the turns.
type recordingGenerator struct {
	response string
	chats    [][]ai.Message
}

func (g *recordingGenerator) GenerateText(context.Context, string, string, string) (string, error) {
	return g.response, nil
}

func (g *recordingGenerator) GenerateChat(_ context.Context, _ string, turns []ai.Message) (string, error) {
	g.chats = append(g.chats, append([]ai.Message(nil), turns...))
	return g.response, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()
	return newTestServerWith(t, staticGenerator{response: "tutor says hi"})
}

func newTestServerWith(t *testing.T, generator ai.Generator) (*httptest.Server, *app.App) {
	t.Helper()
	sessions, err := store.NewJWTSessionStore("0123456789abcdef0123456789abcdef", 15*time.Minute, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	appCore, err := app.New(app.Config{
		Store:         store.NewMemoryStore(),
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
		Objects:       storage.NewMemoryObjectStore(),
		Generator:     generator,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: appCore}).Router())
	t.Cleanup(srv.Close)
	return srv, appCore
}

func listBookmarks(t *testing.T, baseURL, token string) []map[string]any {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/bookmarks", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list bookmarks: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list bookmarks: status %d", resp.StatusCode)
	}
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode bookmark list: %v", err)
	}
	return list
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	payload := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func signupUser(t *testing.T, baseURL, email string) string {
	t.Helper()
	resp, payload := doJSON(t, http.MethodPost, baseURL+"/api/auth/signup", "", map[string]string{
		"name":     "Test",
		"email":    email,
		"password": "secret1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup %s: status %d payload %v", email, resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("signup returned no access token")
	}
	return token
}

func TestRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/subjects", "/api/books", "/api/bookmarks", "/api/search?q=x"} {
		resp, payload := doJSON(t, http.MethodGet, srv.URL+path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s without token: status %d", path, resp.StatusCode)
		}
		if payload["code"] != "AUTH_INVALID_TOKEN" {
			t.Fatalf("GET %s: unexpected code %v", path, payload["code"])
		}
	}
}

func TestSubjectCRUDOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	adminToken := signupUser(t, srv.URL, "admin@example.com")

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/subjects", adminToken, map[string]any{
		"name": "Science", "class": 6,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create subject: status %d payload %v", resp.StatusCode, payload)
	}
	subject := payload["subject"].(map[string]any)
	subjectID := subject["id"].(string)

	// Duplicate (name, class) is rejected with the domain message.
	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/api/subjects", adminToken, map[string]any{
		"name": "Science", "class": 6,
	})
	if resp.StatusCode != http.StatusBadRequest || payload["code"] != "SUBJECT_ALREADY_EXISTS" {
		t.Fatalf("duplicate subject: status %d payload %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodGet, srv.URL+"/api/subjects/"+subjectID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get subject: status %d payload %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodPut, srv.URL+"/api/subjects/"+subjectID, adminToken, map[string]any{
		"name": "Physics",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update subject: status %d payload %v", resp.StatusCode, payload)
	}
	if got := payload["subject"].(map[string]any)["name"]; got != "Physics" {
		t.Fatalf("expected renamed subject, got %v", got)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/subjects/"+subjectID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete subject: status %d", resp.StatusCode)
	}
	resp, payload = doJSON(t, http.MethodGet, srv.URL+"/api/subjects/"+subjectID, adminToken, nil)
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "SUBJECT_NOT_FOUND" {
		t.Fatalf("deleted subject lookup: status %d payload %v", resp.StatusCode, payload)
	}
}

func TestStudentCannotWriteSubjects(t *testing.T) {
	srv, _ := newTestServer(t)
	signupUser(t, srv.URL, "admin@example.com") // first account takes the admin role
	studentToken := signupUser(t, srv.URL, "student@example.com")

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/subjects", studentToken, map[string]any{
		"name": "Science", "class": 6,
	})
	if resp.StatusCode != http.StatusForbidden || payload["code"] != "AUTH_FORBIDDEN" {
		t.Fatalf("student create subject: status %d payload %v", resp.StatusCode, payload)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/subjects", studentToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("student list subjects: status %d", resp.StatusCode)
	}
}

func TestBookCreateViaMultipart(t *testing.T) {
	srv, _ := newTestServer(t)
	adminToken := signupUser(t, srv.URL, "admin@example.com")

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/subjects", adminToken, map[string]any{
		"name": "Science", "class": 6,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create subject: status %d payload %v", resp.StatusCode, payload)
	}
	subjectID := payload["subject"].(map[string]any)["id"].(string)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("title", "Science Class 6")
	_ = form.WriteField("class", "6")
	_ = form.WriteField("subjectId", subjectID)
	part, err := form.CreateFormFile("coverImage", "cover.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}); err != nil {
		t.Fatalf("write cover: %v", err)
	}
	_ = form.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/books", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	bookResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	defer bookResp.Body.Close()
	bookPayload := map[string]any{}
	_ = json.NewDecoder(bookResp.Body).Decode(&bookPayload)
	if bookResp.StatusCode != http.StatusCreated {
		t.Fatalf("create book: status %d payload %v", bookResp.StatusCode, bookPayload)
	}
	book := bookPayload["book"].(map[string]any)
	if book["publisher"] != "NCERT" {
		t.Fatalf("expected default publisher, got %v", book["publisher"])
	}
	if book["coverImage"] == "" {
		t.Fatal("expected cover image URL on created book")
	}
}

func TestBookmarkToggleOverHTTP(t *testing.T) {
	srv, appCore := newTestServer(t)
	adminToken := signupUser(t, srv.URL, "admin@example.com")

	subject, err := appCore.CreateSubject("Science", 6)
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	book, err := appCore.CreateBook(context.Background(), app.BookInput{
		Title:     ptr("Science Class 6"),
		Class:     ptrInt(6),
		SubjectID: ptr(subject.ID),
	}, &app.FileUpload{Name: "cover.png", ContentType: "image/png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	chapter, err := appCore.CreateChapter(context.Background(), app.ChapterInput{
		BookID:        ptr(book.ID),
		ChapterNumber: ptrInt(1),
		Title:         ptr("Food"),
	}, nil, nil)
	if err != nil {
		t.Fatalf("seed chapter: %v", err)
	}

	toggleURL := fmt.Sprintf("%s/api/bookmarks/toggle/%s", srv.URL, chapter.ID)
	resp, payload := doJSON(t, http.MethodPost, toggleURL, adminToken, nil)
	if resp.StatusCode != http.StatusOK || payload["isBookmarked"] != true {
		t.Fatalf("first toggle: status %d payload %v", resp.StatusCode, payload)
	}

	// The list endpoint returns the bookmarks as a bare array.
	bookmarks := listBookmarks(t, srv.URL, adminToken)
	if len(bookmarks) != 1 {
		t.Fatalf("expected one bookmark, got %v", bookmarks)
	}

	checkURL := fmt.Sprintf("%s/api/bookmarks/check/%s", srv.URL, chapter.ID)
	resp, payload = doJSON(t, http.MethodGet, checkURL, adminToken, nil)
	if resp.StatusCode != http.StatusOK || payload["isBookmarked"] != true {
		t.Fatalf("check: status %d payload %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodPost, toggleURL, adminToken, nil)
	if resp.StatusCode != http.StatusOK || payload["isBookmarked"] != false {
		t.Fatalf("second toggle: status %d payload %v", resp.StatusCode, payload)
	}
	if got := listBookmarks(t, srv.URL, adminToken); len(got) != 0 {
		t.Fatalf("expected no bookmarks after toggle off, got %v", got)
	}

	// Deleting an absent bookmark still succeeds.
	deleteURL := fmt.Sprintf("%s/api/bookmarks/%s", srv.URL, chapter.ID)
	resp, _ = doJSON(t, http.MethodDelete, deleteURL, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete absent bookmark: status %d", resp.StatusCode)
	}

	// Unknown chapter maps to 404.
	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/api/bookmarks/toggle/missing", adminToken, nil)
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "CHAPTER_NOT_FOUND" {
		t.Fatalf("toggle missing chapter: status %d payload %v", resp.StatusCode, payload)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, appCore := newTestServer(t)
	token := signupUser(t, srv.URL, "admin@example.com")
	if _, err := appCore.CreateSubject("Science", 6); err != nil {
		t.Fatalf("seed subject: %v", err)
	}

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/api/search?q=science", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status %d payload %v", resp.StatusCode, payload)
	}
	subjects := payload["subjects"].([]any)
	if len(subjects) != 1 {
		t.Fatalf("expected one subject hit, got %v", subjects)
	}
	if _, ok := payload["flat"].([]any); !ok {
		t.Fatalf("expected flat result list, got %v", payload["flat"])
	}
}

func TestChatbotAskEndpoint(t *testing.T) {
	srv, appCore := newTestServer(t)
	token := signupUser(t, srv.URL, "admin@example.com")

	subject, err := appCore.CreateSubject("Science", 6)
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	book, err := appCore.CreateBook(context.Background(), app.BookInput{
		Title:     ptr("Science Class 6"),
		Class:     ptrInt(6),
		SubjectID: ptr(subject.ID),
	}, &app.FileUpload{Name: "cover.png", ContentType: "image/png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	chapter, err := appCore.CreateChapter(context.Background(), app.ChapterInput{
		BookID:        ptr(book.ID),
		ChapterNumber: ptrInt(1),
		Title:         ptr("Food"),
	}, nil, nil)
	if err != nil {
		t.Fatalf("seed chapter: %v", err)
	}

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/chatbot/ask", token, map[string]any{
		"question":  "Where does food come from?",
		"chapterId": chapter.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: status %d payload %v", resp.StatusCode, payload)
	}
	if payload["response"] != "tutor says hi" {
		t.Fatalf("unexpected response: %v", payload["response"])
	}

	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/api/chatbot/ask", token, map[string]any{
		"question": "no chapter",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("ask without chapter: status %d payload %v", resp.StatusCode, payload)
	}
}

func TestChatbotAskCarriesChatHistory(t *testing.T) {
	generator := &recordingGenerator{response: "tutor says hi"}
	srv, appCore := newTestServerWith(t, generator)
	token := signupUser(t, srv.URL, "admin@example.com")

	subject, err := appCore.CreateSubject("Science", 6)
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	book, err := appCore.CreateBook(context.Background(), app.BookInput{
		Title:     ptr("Science Class 6"),
		Class:     ptrInt(6),
		SubjectID: ptr(subject.ID),
	}, &app.FileUpload{Name: "cover.png", ContentType: "image/png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	chapter, err := appCore.CreateChapter(context.Background(), app.ChapterInput{
		BookID:        ptr(book.ID),
		ChapterNumber: ptrInt(1),
		Title:         ptr("Food"),
	}, nil, nil)
	if err != nil {
		t.Fatalf("seed chapter: %v", err)
	}

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/chatbot/ask", token, map[string]any{
		"question":  "And where do plants get it?",
		"chapterId": chapter.ID,
		"chatHistory": []map[string]string{
			{"role": "user", "content": "Where does food come from?"},
			{"role": "model", "content": "Food comes from plants and animals."},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: status %d payload %v", resp.StatusCode, payload)
	}
	if len(generator.chats) != 1 {
		t.Fatalf("expected one chat call, got %d", len(generator.chats))
	}
	// Priming, acknowledgement, the two history turns, then the question.
	turns := generator.chats[0]
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(turns))
	}
	if turns[2].Role != "user" || turns[2].Text != "Where does food come from?" {
		t.Fatalf("unexpected first history turn: %+v", turns[2])
	}
	if turns[3].Role != "model" || turns[3].Text != "Food comes from plants and animals." {
		t.Fatalf("unexpected second history turn: %+v", turns[3])
	}
	if turns[4].Text != "And where do plants get it?" {
		t.Fatalf("unexpected question turn: %+v", turns[4])
	}
}

func ptr(s string) *string { return &s }
func ptrInt(n int) *int    { return &n }
