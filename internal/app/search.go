package app

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"edustore/internal/util"
	"edustore/pkg/domain"
	"edustore/pkg/store"
)

const (
	maxClassResults   = 4
	maxSubjectResults = 5
	maxBookResults    = 5
	maxChapterResults = 6

	quickAnswerTimeout = 10 * time.Second
)

// SearchResults holds the four result buckets plus the optional AI answer.
type SearchResults struct {
	Classes  []int            `json:"classes"`
	Subjects []domain.Subject `json:"subjects"`
	Books    []domain.Book    `json:"books"`
	Chapters []domain.Chapter `json:"chapters"`
	AIAnswer string           `json:"aiAnswer,omitempty"`
}

// Flatten merges the buckets into one list in the fixed order
// classes, subjects, books, chapters.
func (r SearchResults) Flatten() []domain.SearchResult {
	out := make([]domain.SearchResult, 0,
		len(r.Classes)+len(r.Subjects)+len(r.Books)+len(r.Chapters))
	for _, c := range r.Classes {
		out = append(out, domain.SearchResult{Kind: domain.KindClass, Class: c})
	}
	for i := range r.Subjects {
		out = append(out, domain.SearchResult{Kind: domain.KindSubject, Subject: &r.Subjects[i]})
	}
	for i := range r.Books {
		out = append(out, domain.SearchResult{Kind: domain.KindBook, Book: &r.Books[i]})
	}
	for i := range r.Chapters {
		out = append(out, domain.SearchResult{Kind: domain.KindChapter, Chapter: &r.Chapters[i]})
	}
	return out
}

// Search runs the four lookups concurrently and merges the outcome. When the
// query reads like a question, a quick AI answer is fetched as a supplement,
// and its failure is swallowed.
func (a *App) Search(ctx context.Context, query string) (SearchResults, error) {
	results, err := a.SearchLookups(ctx, query)
	if err != nil {
		return results, err
	}
	if IsQuestion(query) {
		answerCtx, cancel := context.WithTimeout(ctx, quickAnswerTimeout)
		defer cancel()
		answer, err := a.QuickAnswer(answerCtx, query)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("search ai answer failed", "error", err)
		} else {
			results.AIAnswer = answer
		}
	}
	return results, nil
}

// SearchLookups runs only the four bucket lookups. A failed lookup degrades
// to an empty bucket with a warn log; the call itself never fails.
func (a *App) SearchLookups(ctx context.Context, query string) (SearchResults, error) {
	results := SearchResults{
		Classes:  []int{},
		Subjects: []domain.Subject{},
		Books:    []domain.Book{},
		Chapters: []domain.Chapter{},
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return results, nil
	}
	logger := util.LoggerFromContext(ctx)

	var g errgroup.Group
	g.Go(func() error {
		results.Classes = matchClasses(query)
		return nil
	})
	g.Go(func() error {
		subjects, err := a.store.ListSubjects(0)
		if err != nil {
			logger.Warn("search subjects failed", "error", err)
			return nil
		}
		ql := strings.ToLower(query)
		matched := make([]domain.Subject, 0, maxSubjectResults)
		for _, subject := range subjects {
			if strings.Contains(strings.ToLower(subject.Name), ql) {
				matched = append(matched, subject)
				if len(matched) == maxSubjectResults {
					break
				}
			}
		}
		results.Subjects = matched
		return nil
	})
	g.Go(func() error {
		books, _, err := a.store.ListBooks(store.BookFilter{Search: query, Limit: maxBookResults})
		if err != nil {
			logger.Warn("search books failed", "error", err)
			return nil
		}
		if books != nil {
			results.Books = books
		}
		return nil
	})
	g.Go(func() error {
		chapters, _, err := a.store.ListChapters(store.ChapterFilter{Search: query, Limit: maxChapterResults})
		if err != nil {
			logger.Warn("search chapters failed", "error", err)
			return nil
		}
		if chapters != nil {
			results.Chapters = chapters
		}
		return nil
	})
	_ = g.Wait()
	return results, nil
}

var classPrefixRe = regexp.MustCompile(`(?i)class\s*`)

// matchClasses returns the classes 1-12 whose "class N" label relates to the
// query: the label contains the lowercased query, the bare digits contain the
// raw query, or the query mentions "class" and the digits contain the query
// with the first "class" prefix removed. Capped at 4.
func matchClasses(query string) []int {
	ql := strings.ToLower(query)
	stripped := query
	if loc := classPrefixRe.FindStringIndex(query); loc != nil {
		stripped = query[:loc[0]] + query[loc[1]:]
	}
	mentionsClass := strings.Contains(ql, "class")
	matched := make([]int, 0, maxClassResults)
	for c := domain.MinClass; c <= domain.MaxClass; c++ {
		digits := strconv.Itoa(c)
		switch {
		case strings.Contains("class "+digits, ql),
			strings.Contains(digits, query),
			mentionsClass && strings.Contains(digits, stripped):
			matched = append(matched, c)
		}
		if len(matched) == maxClassResults {
			break
		}
	}
	return matched
}

var questionWords = []string{
	"what", "why", "how", "when", "where", "who", "which",
	"explain", "define", "describe", "tell", "can you",
	"is", "are", "do", "does", "will", "would", "could", "should",
}

// IsQuestion reports whether the query reads like a question: it ends with a
// question mark or starts with an interrogative word.
func IsQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, word := range questionWords {
		if strings.HasPrefix(lower, word) {
			return true
		}
	}
	return false
}
