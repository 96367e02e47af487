package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docchat/internal/api"
)

// Backend is the slice of the API client the store depends on
type Backend interface {
	ListChats(ctx context.Context, limit int, lastKey string) (api.ChatPage, error)
	Search(ctx context.Context, query string) (api.SearchResult, error)
}

// Store holds the ordered exchange list for the active session. Exchanges are
// kept oldest first: pagination prepends at the front, sends append at the
// back, and nothing ever reorders what is already displayed.
type Store struct {
	backend  Backend
	pageSize int
	log      *zap.Logger

	mu        sync.Mutex
	exchanges []Exchange
	cursor    string
	hasMore   bool
	paging    bool
	pendingID string
	epoch     uint64
}

// NewStore creates a conversation store backed by the given client
func NewStore(backend Backend, pageSize int, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		backend:  backend,
		pageSize: pageSize,
		log:      log,
	}
}

// LoadInitial fetches the newest page of history and replaces the in-memory
// list. On failure the list is emptied and hasMore cleared; the operation is
// idempotent and the caller may simply invoke it again.
func (s *Store) LoadInitial(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.exchanges = nil
	s.cursor = ""
	s.hasMore = false
	s.paging = false
	s.pendingID = ""
	s.mu.Unlock()

	page, err := s.backend.ListChats(ctx, s.pageSize, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return nil
	}
	if err != nil {
		s.exchanges = nil
		s.cursor = ""
		s.hasMore = false
		s.log.Warn("initial history fetch failed", zap.Error(err))
		return err
	}

	s.exchanges = recordsToExchanges(page.Chats)
	s.cursor = page.NextPageToken
	s.hasMore = page.HasMore
	s.log.Debug("loaded initial history",
		zap.Int("count", len(s.exchanges)),
		zap.Bool("hasMore", s.hasMore))
	return nil
}

// LoadMore fetches the next older page and prepends it. It is a no-op when
// the history is exhausted or a pagination fetch is already in flight.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasMore || s.paging {
		s.mu.Unlock()
		return nil
	}
	s.paging = true
	cursor := s.cursor
	epoch := s.epoch
	s.mu.Unlock()

	page, err := s.backend.ListChats(ctx, s.pageSize, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		// Store was reset while the fetch was in flight; drop the result
		return nil
	}
	s.paging = false
	if err != nil {
		s.log.Warn("pagination fetch failed", zap.Error(err))
		return err
	}

	older := recordsToExchanges(page.Chats)
	s.exchanges = append(older, s.exchanges...)
	s.cursor = page.NextPageToken
	s.hasMore = page.HasMore
	s.log.Debug("loaded older history",
		zap.Int("added", len(older)),
		zap.Bool("hasMore", s.hasMore))
	return nil
}

// Send submits a query. The exchange appears in the transcript immediately in
// pending state and is reconciled in place when the answer (or failure)
// arrives. Blank input, or a send while another exchange is still pending, is
// a no-op.
func (s *Store) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if text == "" || s.pendingID != "" {
		s.mu.Unlock()
		return nil
	}
	exchange := Exchange{
		ID:        uuid.New().String(),
		Query:     text,
		Answer:    pendingAnswer,
		CreatedAt: time.Now(),
		State:     StatePending,
	}
	s.exchanges = append(s.exchanges, exchange)
	s.pendingID = exchange.ID
	epoch := s.epoch
	s.mu.Unlock()

	result, err := s.backend.Search(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return nil
	}

	idx := s.indexOf(exchange.ID)
	if idx < 0 {
		s.pendingID = ""
		return nil
	}

	if err != nil {
		// The question stays in the transcript; only its answer reports
		// the failure
		s.exchanges[idx].Answer = erroredAnswer
		s.exchanges[idx].State = StateErrored
		s.pendingID = ""
		s.log.Warn("query failed", zap.String("id", exchange.ID), zap.Error(err))
		return err
	}

	answer := result.Answer
	if answer == "" {
		answer = emptyAnswer
	}
	s.exchanges[idx].Answer = answer
	s.exchanges[idx].Sources = result.Sources
	s.exchanges[idx].Metrics = result.Metrics
	s.exchanges[idx].State = StateComplete
	s.pendingID = ""
	return nil
}

// Reset clears the transcript and cursor for a fresh session. Any in-flight
// fetch or send resolves against a stale epoch and is discarded on arrival.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.exchanges = nil
	s.cursor = ""
	s.hasMore = false
	s.paging = false
	s.pendingID = ""
}

// Exchanges returns a copy of the transcript, oldest first
func (s *Store) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// HasMore reports whether older history remains to be fetched
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Pending reports whether a send is outstanding
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingID != ""
}

// indexOf returns the position of the exchange with the given id, or -1
// (must be called with lock held)
func (s *Store) indexOf(id string) int {
	for i := range s.exchanges {
		if s.exchanges[i].ID == id {
			return i
		}
	}
	return -1
}

// recordsToExchanges converts one history page into transcript order. The
// backend returns pages newest first; the transcript runs oldest first.
func recordsToExchanges(records []api.ChatRecord) []Exchange {
	out := make([]Exchange, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		out = append(out, Exchange{
			ID:        id,
			Query:     r.Query,
			Answer:    r.Answer,
			Sources:   r.Sources,
			Metrics:   r.Metrics,
			CreatedAt: r.CreatedAt,
			State:     StateComplete,
		})
	}
	return out
}
