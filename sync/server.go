package sync

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/localfirst/eventcore/telemetry"
)

// Backend persists one store's pushed log and its event-id index. Server
// delegates all storage to it so the sequence-assignment logic can be
// tested against an in-memory Backend and later swapped for a
// SQL-backed one without changing Server's conflict classification.
type Backend interface {
	Head(storeID string) (int64, error)
	HasEventID(storeID, eventID string) (bool, error)
	Append(storeID string, events []WireEvent, firstSeq int64) error
	Since(storeID string, since int64, limit int) (events []PulledEvent, head int64, err error)
	Reset(storeID string) error
}

// MemoryBackend is an in-memory Backend, suitable for tests and for the
// LocalTransport in-process deployment.
type MemoryBackend struct {
	mu     sync.Mutex
	stores map[string]*storeLog
}

type storeLog struct {
	head     int64
	eventIDs map[string]struct{}
	events   []PulledEvent
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: make(map[string]*storeLog)}
}

func (b *MemoryBackend) storeFor(storeID string) *storeLog {
	s, ok := b.stores[storeID]
	if !ok {
		s = &storeLog{eventIDs: make(map[string]struct{})}
		b.stores[storeID] = s
	}
	return s
}

func (b *MemoryBackend) Head(storeID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storeFor(storeID).head, nil
}

func (b *MemoryBackend) HasEventID(storeID, eventID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.storeFor(storeID).eventIDs[eventID]
	return ok, nil
}

func (b *MemoryBackend) Append(storeID string, events []WireEvent, firstSeq int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.storeFor(storeID)
	for i, e := range events {
		seq := firstSeq + int64(i)
		s.eventIDs[e.EventID] = struct{}{}
		s.events = append(s.events, PulledEvent{
			GlobalSequence: seq,
			EventID:        e.EventID,
			RecordJSON:     e.RecordJSON,
			ScopeID:        e.ScopeID,
			ResourceID:     e.ResourceID,
			ResourceKeyID:  e.ResourceKeyID,
			GrantID:        e.GrantID,
			ScopeStateRef:  e.ScopeStateRef,
			AuthorDeviceID: e.AuthorDeviceID,
		})
	}
	s.head = firstSeq + int64(len(events)) - 1
	return nil
}

func (b *MemoryBackend) Since(storeID string, since int64, limit int) ([]PulledEvent, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.storeFor(storeID)

	var out []PulledEvent
	for _, e := range s.events {
		if e.GlobalSequence > since {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, s.head, nil
}

func (b *MemoryBackend) Reset(storeID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stores, storeID)
	return nil
}

// Server assigns each store_id its own strictly monotonic global sequence
// across every event pushed to that store, serialized per store_id so
// assigned ranges are always contiguous and strictly greater than the
// prior head.
type Server struct {
	backend Backend

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithServerLogger overrides the Server's *slog.Logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithServerMetrics attaches OpenTelemetry instruments recording
// push/pull counts and conflict reasons.
func WithServerMetrics(m *telemetry.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

func NewServer(backend Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
		logger:  slog.Default(),
		metrics: telemetry.Noop().Metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) lockFor(storeID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[storeID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[storeID] = l
	}
	return l
}

// Push validates req against the store's current head and, on success,
// assigns a contiguous range of global sequences strictly after it.
func (s *Server) Push(req PushRequest) (PushResult, error) {
	ctx := context.Background()
	s.metrics.PushTotal.Add(ctx, 1)

	if err := ValidatePushRequest(req); err != nil {
		return PushResult{}, err
	}

	lock := s.lockFor(req.StoreID)
	lock.Lock()
	defer lock.Unlock()

	head, err := s.backend.Head(req.StoreID)
	if err != nil {
		return PushResult{}, err
	}

	switch {
	case req.ExpectedHead > head:
		s.metrics.PushConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(ReasonClientAhead))))
		return PushResult{Reason: ReasonClientAhead, Head: head}, nil
	case req.ExpectedHead < head:
		s.metrics.PushConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(ReasonServerAhead))))
		return PushResult{Reason: ReasonServerAhead, Head: head}, nil
	}

	for _, e := range req.Events {
		seen, err := s.backend.HasEventID(req.StoreID, e.EventID)
		if err != nil {
			return PushResult{}, err
		}
		if seen {
			s.metrics.PushConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(ReasonDuplicateEventID))))
			return PushResult{Reason: ReasonDuplicateEventID, Head: head}, nil
		}
	}

	firstSeq := head + 1
	lastSeq := head + int64(len(req.Events))
	if err := s.backend.Append(req.StoreID, req.Events, firstSeq); err != nil {
		return PushResult{}, err
	}
	s.metrics.PushEventsCount.Record(ctx, int64(len(req.Events)))
	s.logger.Debug("sync: push accepted", "storeId", req.StoreID, "firstSeq", firstSeq, "lastSeq", lastSeq)

	return PushResult{Accepted: true, AssignedRange: [2]int64{firstSeq, lastSeq}}, nil
}

// Pull returns at most req.Limit events with global_sequence > req.Since,
// in ascending order, alongside the server's current head.
func (s *Server) Pull(req PullRequest) (PullResult, error) {
	ctx := context.Background()
	s.metrics.PullTotal.Add(ctx, 1)

	if err := ValidatePullRequest(req); err != nil {
		return PullResult{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	events, head, err := s.backend.Since(req.StoreID, req.Since, limit)
	if err != nil {
		return PullResult{}, err
	}

	result := PullResult{Events: events, Head: head}
	if len(events) == limit {
		last := events[len(events)-1].GlobalSequence
		more, _, err := s.backend.Since(req.StoreID, last, 1)
		if err != nil {
			return PullResult{}, err
		}
		if len(more) > 0 {
			result.HasMore = true
			result.NextSince = &last
		}
	}
	return result, nil
}

// Reset clears a store's server-side log. Development/test use only.
func (s *Server) Reset(storeID string) error {
	return s.backend.Reset(storeID)
}
