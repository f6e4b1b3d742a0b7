package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/iconidentify/tunegrab/internal/domain"
)

// EventServiceConfig configures the event service.
type EventServiceConfig struct {
	// RingBufferSize is the number of events to keep in memory.
	// Default: 500
	RingBufferSize int

	// SQLitePath enables persistence of request outcomes when set.
	SQLitePath string

	// RetentionDays is how long to keep events in SQLite (0 = forever).
	RetentionDays int
}

// EventService records request outcomes in an in-memory ring buffer
// with optional SQLite persistence.
type EventService struct {
	cfg    EventServiceConfig
	logger *slog.Logger

	mu     sync.RWMutex
	events []domain.Event
	head   int // next write position
	count  int
	closed bool

	db      *sql.DB
	persist sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[uint64]chan domain.Event
	subSeq      uint64
}

// NewEventService creates a new event service.
func NewEventService(cfg EventServiceConfig, logger *slog.Logger) (*EventService, error) {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 500
	}

	svc := &EventService{
		cfg:         cfg,
		logger:      logger,
		events:      make([]domain.Event, cfg.RingBufferSize),
		subscribers: make(map[uint64]chan domain.Event),
	}

	if cfg.SQLitePath != "" {
		if err := svc.initSQLite(); err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		logger.Info("event persistence enabled", "path", cfg.SQLitePath)
	}

	return svc, nil
}

func (s *EventService) initSQLite() error {
	db, err := sql.Open("sqlite", s.cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS request_events (
			id TEXT PRIMARY KEY,
			ts INTEGER NOT NULL,
			workspace TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			query TEXT NOT NULL,
			outcome TEXT NOT NULL,
			stage TEXT NOT NULL,
			failed_at TEXT,
			title TEXT,
			error TEXT,
			duration_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_request_events_ts ON request_events(ts);
		CREATE INDEX IF NOT EXISTS idx_request_events_outcome ON request_events(outcome);
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("create table: %w", err)
	}

	s.db = db
	return nil
}

// Close waits for pending writes and closes the database. Events emitted
// after Close are kept in memory only.
func (s *EventService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.persist.Wait()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Emit records an event.
func (s *EventService) Emit(event domain.Event) {
	if event.ID == "" {
		event.ID = domain.EventID("evt_" + uuid.NewString())
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.events[s.head] = event
	s.head = (s.head + 1) % s.cfg.RingBufferSize
	if s.count < s.cfg.RingBufferSize {
		s.count++
	}
	persist := s.db != nil && !s.closed
	if persist {
		s.persist.Add(1)
	}
	s.mu.Unlock()

	if persist {
		go func() {
			defer s.persist.Done()
			s.persistEvent(event)
		}()
	}

	s.notifySubscribers(event)

	level := slog.LevelInfo
	if event.Outcome == domain.OutcomeFailed {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "request finished",
		"event_id", event.ID,
		"workspace", event.Workspace,
		"chat_id", event.ChatID,
		"outcome", event.Outcome,
		"stage", event.Stage,
		"duration_ms", event.DurationMs,
	)
}

func (s *EventService) persistEvent(event domain.Event) {
	_, err := s.db.Exec(`
		INSERT INTO request_events (id, ts, workspace, chat_id, query, outcome, stage, failed_at, title, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(event.ID), event.Timestamp.UnixMilli(), event.Workspace.String(), event.ChatID, event.Query,
		string(event.Outcome), string(event.Stage), string(event.FailedAt), event.Title, event.Error, event.DurationMs)
	if err != nil {
		s.logger.Warn("failed to persist event", "event_id", event.ID, "error", err)
	}
}

func normalizeQuery(q domain.EventQuery) domain.EventQuery {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Query returns events from the ring buffer matching the filter, newest first.
func (s *EventService) Query(ctx context.Context, query domain.EventQuery) (*domain.EventQueryResult, error) {
	query = normalizeQuery(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Event, 0, s.count)
	for i := 0; i < s.count; i++ {
		idx := (s.head - 1 - i + s.cfg.RingBufferSize) % s.cfg.RingBufferSize
		event := s.events[idx]
		if matchesFilter(event, query.Filter) {
			matched = append(matched, event)
		}
	}

	total := len(matched)
	if query.Offset >= total {
		return &domain.EventQueryResult{Events: []domain.Event{}, Total: total}, nil
	}

	end := query.Offset + query.Limit
	if end > total {
		end = total
	}

	return &domain.EventQueryResult{
		Events:  matched[query.Offset:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// QueryHistorical queries persisted events. It returns an empty result
// when persistence is disabled.
func (s *EventService) QueryHistorical(ctx context.Context, query domain.EventQuery) (*domain.EventQueryResult, error) {
	if s.db == nil {
		return &domain.EventQueryResult{Events: []domain.Event{}}, nil
	}
	query = normalizeQuery(query)

	var conditions []string
	var args []any

	if query.Filter.Outcome != nil {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(*query.Filter.Outcome))
	}
	if query.Filter.ChatID != 0 {
		conditions = append(conditions, "chat_id = ?")
		args = append(args, query.Filter.ChatID)
	}
	if query.Filter.StartTime != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, query.Filter.StartTime.UnixMilli())
	}
	if query.Filter.EndTime != nil {
		conditions = append(conditions, "ts <= ?")
		args = append(args, query.Filter.EndTime.UnixMilli())
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM request_events "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, workspace, chat_id, query, outcome, stage, failed_at, title, error, duration_ms
		FROM request_events `+where+`
		ORDER BY ts DESC
		LIMIT ? OFFSET ?
	`, append(args, query.Limit, query.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, query.Limit)
	for rows.Next() {
		var (
			e         domain.Event
			ts        int64
			failedAt  sql.NullString
			title     sql.NullString
			errString sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Workspace, &e.ChatID, &e.Query, &e.Outcome, &e.Stage, &failedAt, &title, &errString, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		e.FailedAt = domain.Stage(failedAt.String)
		e.Title = title.String
		e.Error = errString.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return &domain.EventQueryResult{
		Events:  events,
		Total:   total,
		HasMore: query.Offset+len(events) < total,
	}, nil
}

// Recent returns the most recent n events, newest first.
func (s *EventService) Recent(n int) []domain.Event {
	if n <= 0 {
		n = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > s.count {
		n = s.count
	}

	result := make([]domain.Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (s.head - 1 - i + s.cfg.RingBufferSize) % s.cfg.RingBufferSize
		result = append(result, s.events[idx])
	}
	return result
}

func matchesFilter(event domain.Event, filter domain.EventFilter) bool {
	if filter.Outcome != nil && event.Outcome != *filter.Outcome {
		return false
	}
	if filter.ChatID != 0 && event.ChatID != filter.ChatID {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}

// Subscribe registers a live listener. The caller must call Unsubscribe when done.
func (s *EventService) Subscribe() (uint64, <-chan domain.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subSeq++
	id := s.subSeq
	ch := make(chan domain.Event, 100)
	s.subscribers[id] = ch

	s.logger.Debug("event subscriber added", "subscriber_id", id, "total_subscribers", len(s.subscribers))
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *EventService) Unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *EventService) notifySubscribers(event domain.Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			s.logger.Warn("event subscriber buffer full, dropping event", "subscriber_id", id, "event_id", event.ID)
		}
	}
}

// EventStats describes the state of the event log.
type EventStats struct {
	BufferSize    int                    `json:"buffer_size"`
	BufferUsed    int                    `json:"buffer_used"`
	ByOutcome     map[domain.Outcome]int `json:"by_outcome"`
	Subscribers   int                    `json:"subscribers"`
	SQLiteEnabled bool                   `json:"sqlite_enabled"`
}

// Stats summarizes the buffered events.
func (s *EventService) Stats() EventStats {
	s.mu.RLock()
	byOutcome := make(map[domain.Outcome]int)
	for i := 0; i < s.count; i++ {
		byOutcome[s.events[i].Outcome]++
	}
	used := s.count
	s.mu.RUnlock()

	s.subMu.RLock()
	subs := len(s.subscribers)
	s.subMu.RUnlock()

	return EventStats{
		BufferSize:    s.cfg.RingBufferSize,
		BufferUsed:    used,
		ByOutcome:     byOutcome,
		Subscribers:   subs,
		SQLiteEnabled: s.db != nil,
	}
}

// CleanupOldEvents removes persisted events older than the retention period.
func (s *EventService) CleanupOldEvents(ctx context.Context) error {
	if s.db == nil || s.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	result, err := s.db.ExecContext(ctx, "DELETE FROM request_events WHERE ts < ?", cutoff.UnixMilli())
	if err != nil {
		return fmt.Errorf("delete old events: %w", err)
	}

	if deleted, _ := result.RowsAffected(); deleted > 0 {
		s.logger.Info("cleaned up old events", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}
