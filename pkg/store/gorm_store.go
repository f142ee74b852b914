package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"edustore/pkg/domain"
)

const migrateLockID int64 = 48291755

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&SubjectModel{},
			&BookModel{},
			&ChapterModel{},
			&BookmarkModel{},
			&ChatMessageModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// --- users ---

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Save(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteUser removes a user and their bookmarks.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&BookmarkModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ChatMessageModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// --- subjects ---

// CreateSubject inserts a subject; duplicate (name, class) yields ErrDuplicate.
func (s *GormStore) CreateSubject(subject domain.Subject) error {
	model := subjectToModel(subject)
	return translateErr(s.db.Create(&model).Error)
}

// UpdateSubject rewrites subject fields.
func (s *GormStore) UpdateSubject(subject domain.Subject) error {
	model := subjectToModel(subject)
	return translateErr(s.db.Save(&model).Error)
}

// GetSubject returns a subject with its books (newest first).
func (s *GormStore) GetSubject(id string) (domain.Subject, bool, error) {
	var model SubjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Subject{}, false, nil
		}
		return domain.Subject{}, false, err
	}
	subject := subjectFromModel(model)
	var bookModels []BookModel
	if err := s.db.Where("subject_id = ?", id).Order("created_at DESC").Find(&bookModels).Error; err != nil {
		return domain.Subject{}, false, err
	}
	subject.Books = make([]domain.Book, 0, len(bookModels))
	for _, bm := range bookModels {
		subject.Books = append(subject.Books, bookFromModel(bm))
	}
	subject.BookCount = len(subject.Books)
	return subject, true, nil
}

// ListSubjects returns subjects ordered by class then name, with book counts.
// class <= 0 returns all classes.
func (s *GormStore) ListSubjects(class int) ([]domain.Subject, error) {
	tx := s.db.Order("class ASC").Order("name ASC")
	if class > 0 {
		tx = tx.Where("class = ?", class)
	}
	var models []SubjectModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	counts, err := s.groupCounts(&BookModel{}, "subject_id")
	if err != nil {
		return nil, err
	}
	res := make([]domain.Subject, 0, len(models))
	for _, m := range models {
		subject := subjectFromModel(m)
		subject.BookCount = counts[m.ID]
		res = append(res, subject)
	}
	return res, nil
}

// DeleteSubject removes a subject row.
func (s *GormStore) DeleteSubject(id string) error {
	return s.db.Delete(&SubjectModel{}, "id = ?", id).Error
}

// --- books ---

// CreateBook inserts a book.
func (s *GormStore) CreateBook(book domain.Book) error {
	model := bookToModel(book)
	return translateErr(s.db.Create(&model).Error)
}

// UpdateBook rewrites book fields.
func (s *GormStore) UpdateBook(book domain.Book) error {
	model := bookToModel(book)
	return translateErr(s.db.Save(&model).Error)
}

// GetBook returns a book with its subject and chapters (chapter number asc).
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.Preload("Subject").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	book := bookFromModel(model)
	var chapterModels []ChapterModel
	if err := s.db.Where("book_id = ?", id).Order("chapter_number ASC").Find(&chapterModels).Error; err != nil {
		return domain.Book{}, false, err
	}
	book.Chapters = make([]domain.Chapter, 0, len(chapterModels))
	for _, cm := range chapterModels {
		book.Chapters = append(book.Chapters, chapterFromModel(cm))
	}
	book.ChapterCount = len(book.Chapters)
	return book, true, nil
}

// ListBooks returns a filtered, paginated page of books plus the total count.
// Search matches title/description case-insensitively. Newest first.
func (s *GormStore) ListBooks(filter BookFilter) ([]domain.Book, int64, error) {
	tx := s.db.Model(&BookModel{})
	if filter.Class > 0 {
		tx = tx.Where("class = ?", filter.Class)
	}
	if filter.SubjectID != "" {
		tx = tx.Where("subject_id = ?", filter.SubjectID)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tx = tx.Preload("Subject").Order("created_at DESC")
	if filter.Offset > 0 {
		tx = tx.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	var models []BookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	counts, err := s.groupCounts(&ChapterModel{}, "book_id")
	if err != nil {
		return nil, 0, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		book := bookFromModel(m)
		book.ChapterCount = counts[m.ID]
		res = append(res, book)
	}
	return res, total, nil
}

// DeleteBook removes a book; chapters go with it via FK cascade.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var chapterIDs []string
		if err := tx.Model(&ChapterModel{}).Where("book_id = ?", id).Pluck("id", &chapterIDs).Error; err != nil {
			return err
		}
		if len(chapterIDs) > 0 {
			if err := tx.Delete(&BookmarkModel{}, "chapter_id IN ?", chapterIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&ChapterModel{}, "book_id = ?", id).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// --- chapters ---

// CreateChapter inserts a chapter; duplicate (book, number) yields ErrDuplicate.
func (s *GormStore) CreateChapter(chapter domain.Chapter) error {
	model := chapterToModel(chapter)
	return translateErr(s.db.Create(&model).Error)
}

// UpdateChapter rewrites chapter fields.
func (s *GormStore) UpdateChapter(chapter domain.Chapter) error {
	model := chapterToModel(chapter)
	return translateErr(s.db.Save(&model).Error)
}

// GetChapter returns a chapter with its book and subject.
func (s *GormStore) GetChapter(id string) (domain.Chapter, bool, error) {
	var model ChapterModel
	if err := s.db.Preload("Book").Preload("Book.Subject").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Chapter{}, false, nil
		}
		return domain.Chapter{}, false, err
	}
	return chapterFromModel(model), true, nil
}

// ListChapters returns a filtered, paginated page of chapters plus the total.
func (s *GormStore) ListChapters(filter ChapterFilter) ([]domain.Chapter, int64, error) {
	tx := s.db.Model(&ChapterModel{})
	if filter.BookID != "" {
		tx = tx.Where("book_id = ?", filter.BookID)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tx = tx.Preload("Book").Preload("Book.Subject").Order("chapter_number ASC")
	if filter.Offset > 0 {
		tx = tx.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	var models []ChapterModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Chapter, 0, len(models))
	for _, m := range models {
		res = append(res, chapterFromModel(m))
	}
	return res, total, nil
}

// ListChaptersByBook returns all chapters of a book ordered by chapter number.
func (s *GormStore) ListChaptersByBook(bookID string) ([]domain.Chapter, error) {
	var models []ChapterModel
	if err := s.db.Where("book_id = ?", bookID).Order("chapter_number ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Chapter, 0, len(models))
	for _, m := range models {
		res = append(res, chapterFromModel(m))
	}
	return res, nil
}

// DeleteChapter removes a chapter and its bookmarks.
func (s *GormStore) DeleteChapter(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&BookmarkModel{}, "chapter_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ChapterModel{}, "id = ?", id).Error
	})
}

// --- bookmarks ---

// CreateBookmark inserts a bookmark. The unique index on (user, chapter) is
// the backstop for concurrent duplicate toggles; violations come back as
// ErrDuplicate.
func (s *GormStore) CreateBookmark(b domain.Bookmark) error {
	model := bookmarkToModel(b)
	return translateErr(s.db.Create(&model).Error)
}

// GetBookmark returns the bookmark for (user, chapter) when present.
func (s *GormStore) GetBookmark(userID, chapterID string) (domain.Bookmark, bool, error) {
	var model BookmarkModel
	if err := s.db.Where("user_id = ? AND chapter_id = ?", userID, chapterID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bookmark{}, false, nil
		}
		return domain.Bookmark{}, false, err
	}
	return bookmarkFromModel(model), true, nil
}

// ListBookmarksByUser returns a user's bookmarks newest first, with the
// chapter, book, and subject attached.
func (s *GormStore) ListBookmarksByUser(userID string) ([]domain.Bookmark, error) {
	var models []BookmarkModel
	if err := s.db.Where("user_id = ?", userID).
		Preload("Chapter").
		Preload("Chapter.Book").
		Preload("Chapter.Book.Subject").
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bookmark, 0, len(models))
	for _, m := range models {
		res = append(res, bookmarkFromModel(m))
	}
	return res, nil
}

// DeleteBookmarks removes any bookmark rows matching (user, chapter) and
// reports how many went away. Zero matches is not an error.
func (s *GormStore) DeleteBookmarks(userID, chapterID string) (int64, error) {
	tx := s.db.Delete(&BookmarkModel{}, "user_id = ? AND chapter_id = ?", userID, chapterID)
	return tx.RowsAffected, tx.Error
}

// --- chat log ---

// AppendChatMessage records one conversation turn.
func (s *GormStore) AppendChatMessage(msg domain.ChatMessage) error {
	model := chatMessageToModel(msg)
	return s.db.Create(&model).Error
}

// ListChatMessages returns the most recent turns for (user, chapter) in
// chronological order.
func (s *GormStore) ListChatMessages(userID, chapterID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return []domain.ChatMessage{}, nil
	}
	var models []ChatMessageModel
	if err := s.db.Where("user_id = ? AND chapter_id = ?", userID, chapterID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.ChatMessage, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msgs = append(msgs, chatMessageFromModel(models[i]))
	}
	return msgs, nil
}

func (s *GormStore) groupCounts(model any, column string) (map[string]int, error) {
	type row struct {
		Key   string
		Count int
	}
	var rows []row
	if err := s.db.Model(model).
		Select(fmt.Sprintf("%s AS key, COUNT(*) AS count", column)).
		Group(column).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Count
	}
	return counts, nil
}

// --- converters ---

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	status := domain.UserStatus(m.Status)
	if status == "" {
		status = domain.StatusActive
	}
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func subjectToModel(s domain.Subject) SubjectModel {
	return SubjectModel{
		ID:        s.ID,
		Name:      s.Name,
		Class:     s.Class,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func subjectFromModel(m SubjectModel) domain.Subject {
	return domain.Subject{
		ID:        m.ID,
		Name:      m.Name,
		Class:     m.Class,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:            b.ID,
		Title:         b.Title,
		Description:   b.Description,
		Class:         b.Class,
		SubjectID:     b.SubjectID,
		Publisher:     b.Publisher,
		Edition:       b.Edition,
		Year:          b.Year,
		CoverImageURL: b.CoverImageURL,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	book := domain.Book{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		Class:         m.Class,
		SubjectID:     m.SubjectID,
		Publisher:     m.Publisher,
		Edition:       m.Edition,
		Year:          m.Year,
		CoverImageURL: m.CoverImageURL,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Subject != nil {
		subject := subjectFromModel(*m.Subject)
		book.Subject = &subject
	}
	return book
}

func chapterToModel(c domain.Chapter) ChapterModel {
	return ChapterModel{
		ID:              c.ID,
		BookID:          c.BookID,
		ChapterNumber:   c.ChapterNumber,
		Title:           c.Title,
		Description:     c.Description,
		PageRange:       c.PageRange,
		PageCount:       c.PageCount,
		ChapterImageURL: c.ChapterImageURL,
		PDFURL:          c.PDFURL,
		PDFKey:          c.PDFKey,
		FileSizeBytes:   c.FileSizeBytes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func chapterFromModel(m ChapterModel) domain.Chapter {
	chapter := domain.Chapter{
		ID:              m.ID,
		BookID:          m.BookID,
		ChapterNumber:   m.ChapterNumber,
		Title:           m.Title,
		Description:     m.Description,
		PageRange:       m.PageRange,
		PageCount:       m.PageCount,
		ChapterImageURL: m.ChapterImageURL,
		PDFURL:          m.PDFURL,
		PDFKey:          m.PDFKey,
		FileSizeBytes:   m.FileSizeBytes,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Book != nil {
		book := bookFromModel(*m.Book)
		chapter.Book = &book
	}
	return chapter
}

func bookmarkToModel(b domain.Bookmark) BookmarkModel {
	return BookmarkModel{
		ID:        b.ID,
		UserID:    b.UserID,
		ChapterID: b.ChapterID,
		CreatedAt: b.CreatedAt,
	}
}

func bookmarkFromModel(m BookmarkModel) domain.Bookmark {
	bookmark := domain.Bookmark{
		ID:        m.ID,
		UserID:    m.UserID,
		ChapterID: m.ChapterID,
		CreatedAt: m.CreatedAt,
	}
	if m.Chapter != nil {
		chapter := chapterFromModel(*m.Chapter)
		bookmark.Chapter = &chapter
	}
	return bookmark
}

func chatMessageToModel(msg domain.ChatMessage) ChatMessageModel {
	rawContext, _ := json.Marshal(msg.Context)
	return ChatMessageModel{
		ID:        msg.ID,
		UserID:    msg.UserID,
		ChapterID: msg.ChapterID,
		Role:      msg.Role,
		Content:   msg.Content,
		Context:   rawContext,
		CreatedAt: msg.CreatedAt,
	}
}

func chatMessageFromModel(m ChatMessageModel) domain.ChatMessage {
	var contextMap map[string]string
	if len(m.Context) > 0 {
		_ = json.Unmarshal(m.Context, &contextMap)
	}
	return domain.ChatMessage{
		ID:        m.ID,
		UserID:    m.UserID,
		ChapterID: m.ChapterID,
		Role:      m.Role,
		Content:   m.Content,
		Context:   contextMap,
		CreatedAt: m.CreatedAt,
	}
}
