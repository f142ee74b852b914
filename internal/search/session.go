// Package search drives an interactive search overlay: debounced queries,
// stale-result protection, and keyboard navigation over the merged result
// list.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"edustore/internal/app"
	"edustore/pkg/domain"
)

// State is the overlay's lifecycle state.
type State string

const (
	StateClosed     State = "closed"
	StateEmpty      State = "empty"
	StateLoading    State = "loading"
	StateResults    State = "results"
	StateAIThinking State = "ai_thinking"
	StateError      State = "error"
)

// DefaultDebounce is how long a query must rest before lookups fire.
const DefaultDebounce = 200 * time.Millisecond

// Backend is the slice of the application the session needs.
type Backend interface {
	SearchLookups(ctx context.Context, query string) (app.SearchResults, error)
	QuickAnswer(ctx context.Context, question string) (string, error)
}

// Session is one user's search overlay. Methods are safe for concurrent use.
//
// Every SetQuery bumps a generation counter; lookup results carry the
// generation they were started for and are dropped when a newer query has
// taken over, so a slow early response can never overwrite a later one.
type Session struct {
	mu sync.Mutex

	backend  Backend
	debounce time.Duration

	state      State
	query      string
	generation uint64
	timer      *time.Timer

	results  app.SearchResults
	flat     []domain.SearchResult
	selected int
	lastErr  error

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession builds a closed session. debounce <= 0 uses DefaultDebounce.
func NewSession(backend Backend, debounce time.Duration) *Session {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Session{
		backend:  backend,
		debounce: debounce,
		state:    StateClosed,
	}
}

// Open activates the overlay with a blank query.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.resetLocked()
	s.state = StateEmpty
}

// Close deactivates the overlay and discards in-flight work.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.state == StateClosed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.resetLocked()
	s.state = StateClosed
}

func (s *Session) resetLocked() {
	s.query = ""
	s.results = app.SearchResults{}
	s.flat = nil
	s.selected = 0
	s.lastErr = nil
}

// SetQuery records the typed text. Lookups fire only after the query has
// rested for the debounce window; every keystroke restarts the clock. A
// blank query clears results immediately.
func (s *Session) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.query = query
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if strings.TrimSpace(query) == "" {
		s.results = app.SearchResults{}
		s.flat = nil
		s.selected = 0
		s.lastErr = nil
		s.state = StateEmpty
		return
	}
	s.state = StateLoading
	gen := s.generation
	ctx := s.ctx
	s.timer = time.AfterFunc(s.debounce, func() {
		s.runLookups(ctx, gen, query)
	})
}

func (s *Session) runLookups(ctx context.Context, gen uint64, query string) {
	results, err := s.backend.SearchLookups(ctx, query)

	s.mu.Lock()
	if gen != s.generation || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.lastErr = err
		s.state = StateError
		s.mu.Unlock()
		return
	}
	s.results = results
	s.flat = results.Flatten()
	s.selected = 0
	if app.IsQuestion(query) {
		s.state = StateAIThinking
		s.mu.Unlock()
		go s.runQuickAnswer(ctx, gen, query)
		return
	}
	s.state = StateResults
	s.mu.Unlock()
}

func (s *Session) runQuickAnswer(ctx context.Context, gen uint64, query string) {
	answer, err := s.backend.QuickAnswer(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state == StateClosed {
		return
	}
	if err == nil {
		s.results.AIAnswer = answer
	}
	// An AI failure is not a session error; the buckets still stand.
	s.state = StateResults
}

// MoveDown advances the selection, wrapping past the end.
func (s *Session) MoveDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flat) == 0 {
		return
	}
	s.selected = (s.selected + 1) % len(s.flat)
}

// MoveUp retreats the selection, wrapping before the start.
func (s *Session) MoveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flat) == 0 {
		return
	}
	s.selected = (s.selected - 1 + len(s.flat)) % len(s.flat)
}

// Select activates the highlighted entry: it returns the entry exactly once
// and closes the session. ok is false when nothing is selectable.
func (s *Session) Select() (domain.SearchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResults && s.state != StateAIThinking {
		return domain.SearchResult{}, false
	}
	if s.selected < 0 || s.selected >= len(s.flat) {
		return domain.SearchResult{}, false
	}
	entry := s.flat[s.selected]
	s.closeLocked()
	return entry, true
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Query returns the current query text.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Results returns the current buckets.
func (s *Session) Results() app.SearchResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Selected returns the highlighted entry without activating it.
func (s *Session) Selected() (domain.SearchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected < 0 || s.selected >= len(s.flat) {
		return domain.SearchResult{}, false
	}
	return s.flat[s.selected], true
}

// Err returns the failure that put the session in StateError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
