package store

import (
	"sort"
	"strings"
	"sync"

	"edustore/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local runs. It enforces the
// same uniqueness rules as the DB schema.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	subjects  map[string]domain.Subject
	books     map[string]domain.Book
	chapters  map[string]domain.Chapter
	bookmarks map[string]domain.Bookmark
	chatLog   []domain.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		subjects:  make(map[string]domain.Subject),
		books:     make(map[string]domain.Book),
		chapters:  make(map[string]domain.Chapter),
		bookmarks: make(map[string]domain.Bookmark),
	}
}

// --- users ---

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) ListUsers() ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) UserCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *MemoryStore) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for bid, b := range s.bookmarks {
		if b.UserID == id {
			delete(s.bookmarks, bid)
		}
	}
	kept := s.chatLog[:0]
	for _, msg := range s.chatLog {
		if msg.UserID != id {
			kept = append(kept, msg)
		}
	}
	s.chatLog = kept
	return nil
}

// --- subjects ---

func (s *MemoryStore) CreateSubject(subject domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subjects {
		if existing.Class == subject.Class && strings.EqualFold(existing.Name, subject.Name) {
			return ErrDuplicate
		}
	}
	subject.Books = nil
	s.subjects[subject.ID] = subject
	return nil
}

func (s *MemoryStore) UpdateSubject(subject domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.subjects {
		if id != subject.ID && existing.Class == subject.Class && strings.EqualFold(existing.Name, subject.Name) {
			return ErrDuplicate
		}
	}
	subject.Books = nil
	s.subjects[subject.ID] = subject
	return nil
}

func (s *MemoryStore) GetSubject(id string) (domain.Subject, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	if !ok {
		return domain.Subject{}, false, nil
	}
	books := s.booksOfSubject(id)
	subject.Books = books
	subject.BookCount = len(books)
	return subject, true, nil
}

func (s *MemoryStore) ListSubjects(class int) ([]domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Subject, 0, len(s.subjects))
	for _, subject := range s.subjects {
		if class > 0 && subject.Class != class {
			continue
		}
		subject.BookCount = len(s.booksOfSubject(subject.ID))
		res = append(res, subject)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Class != res[j].Class {
			return res[i].Class < res[j].Class
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

func (s *MemoryStore) DeleteSubject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subjects, id)
	return nil
}

func (s *MemoryStore) booksOfSubject(subjectID string) []domain.Book {
	var books []domain.Book
	for _, b := range s.books {
		if b.SubjectID == subjectID {
			books = append(books, b)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].CreatedAt.After(books[j].CreatedAt) })
	return books
}

// --- books ---

func (s *MemoryStore) CreateBook(book domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book.Subject = nil
	book.Chapters = nil
	s.books[book.ID] = book
	return nil
}

func (s *MemoryStore) UpdateBook(book domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book.Subject = nil
	book.Chapters = nil
	s.books[book.ID] = book
	return nil
}

func (s *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[id]
	if !ok {
		return domain.Book{}, false, nil
	}
	s.attachSubject(&book)
	chapters := s.chaptersOfBook(id)
	book.Chapters = chapters
	book.ChapterCount = len(chapters)
	return book, true, nil
}

func (s *MemoryStore) ListBooks(filter BookFilter) ([]domain.Book, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []domain.Book
	q := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, book := range s.books {
		if filter.Class > 0 && book.Class != filter.Class {
			continue
		}
		if filter.SubjectID != "" && book.SubjectID != filter.SubjectID {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(book.Title), q) &&
			!strings.Contains(strings.ToLower(book.Description), q) {
			continue
		}
		s.attachSubject(&book)
		book.ChapterCount = len(s.chaptersOfBook(book.ID))
		matched = append(matched, book)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	matched = pageOf(matched, filter.Offset, filter.Limit)
	return matched, total, nil
}

func (s *MemoryStore) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, c := range s.chapters {
		if c.BookID != id {
			continue
		}
		for bid, b := range s.bookmarks {
			if b.ChapterID == cid {
				delete(s.bookmarks, bid)
			}
		}
		delete(s.chapters, cid)
	}
	delete(s.books, id)
	return nil
}

func (s *MemoryStore) attachSubject(book *domain.Book) {
	if subject, ok := s.subjects[book.SubjectID]; ok {
		subject.Books = nil
		book.Subject = &subject
	}
}

func (s *MemoryStore) chaptersOfBook(bookID string) []domain.Chapter {
	var chapters []domain.Chapter
	for _, c := range s.chapters {
		if c.BookID == bookID {
			chapters = append(chapters, c)
		}
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].ChapterNumber < chapters[j].ChapterNumber })
	return chapters
}

// --- chapters ---

func (s *MemoryStore) CreateChapter(chapter domain.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.chapters {
		if existing.BookID == chapter.BookID && existing.ChapterNumber == chapter.ChapterNumber {
			return ErrDuplicate
		}
	}
	chapter.Book = nil
	s.chapters[chapter.ID] = chapter
	return nil
}

func (s *MemoryStore) UpdateChapter(chapter domain.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.chapters {
		if id != chapter.ID && existing.BookID == chapter.BookID && existing.ChapterNumber == chapter.ChapterNumber {
			return ErrDuplicate
		}
	}
	chapter.Book = nil
	s.chapters[chapter.ID] = chapter
	return nil
}

func (s *MemoryStore) GetChapter(id string) (domain.Chapter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chapter, ok := s.chapters[id]
	if !ok {
		return domain.Chapter{}, false, nil
	}
	s.attachBook(&chapter)
	return chapter, true, nil
}

func (s *MemoryStore) ListChapters(filter ChapterFilter) ([]domain.Chapter, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []domain.Chapter
	q := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, chapter := range s.chapters {
		if filter.BookID != "" && chapter.BookID != filter.BookID {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(chapter.Title), q) &&
			!strings.Contains(strings.ToLower(chapter.Description), q) {
			continue
		}
		s.attachBook(&chapter)
		matched = append(matched, chapter)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ChapterNumber < matched[j].ChapterNumber })
	total := int64(len(matched))
	matched = pageOf(matched, filter.Offset, filter.Limit)
	return matched, total, nil
}

func (s *MemoryStore) ListChaptersByBook(bookID string) ([]domain.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chaptersOfBook(bookID), nil
}

func (s *MemoryStore) DeleteChapter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for bid, b := range s.bookmarks {
		if b.ChapterID == id {
			delete(s.bookmarks, bid)
		}
	}
	delete(s.chapters, id)
	return nil
}

func (s *MemoryStore) attachBook(chapter *domain.Chapter) {
	book, ok := s.books[chapter.BookID]
	if !ok {
		return
	}
	s.attachSubject(&book)
	book.Chapters = nil
	chapter.Book = &book
}

// --- bookmarks ---

func (s *MemoryStore) CreateBookmark(b domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookmarks {
		if existing.UserID == b.UserID && existing.ChapterID == b.ChapterID {
			return ErrDuplicate
		}
	}
	b.Chapter = nil
	s.bookmarks[b.ID] = b
	return nil
}

func (s *MemoryStore) GetBookmark(userID, chapterID string) (domain.Bookmark, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookmarks {
		if b.UserID == userID && b.ChapterID == chapterID {
			return b, true, nil
		}
	}
	return domain.Bookmark{}, false, nil
}

func (s *MemoryStore) ListBookmarksByUser(userID string) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Bookmark
	for _, b := range s.bookmarks {
		if b.UserID != userID {
			continue
		}
		if chapter, ok := s.chapters[b.ChapterID]; ok {
			s.attachBook(&chapter)
			b.Chapter = &chapter
		}
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) DeleteBookmarks(userID, chapterID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, b := range s.bookmarks {
		if b.UserID == userID && b.ChapterID == chapterID {
			delete(s.bookmarks, id)
			removed++
		}
	}
	return removed, nil
}

// --- chat log ---

func (s *MemoryStore) AppendChatMessage(msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatLog = append(s.chatLog, msg)
	return nil
}

func (s *MemoryStore) ListChatMessages(userID, chapterID string, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		return []domain.ChatMessage{}, nil
	}
	var matched []domain.ChatMessage
	for _, msg := range s.chatLog {
		if msg.UserID == userID && msg.ChapterID == chapterID {
			matched = append(matched, msg)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
