package core

import (
	"context"
	"errors"
	"herdcore/internal/infra/persistence/memory"
	"herdcore/pkg/domain"
	"time"
)

// Service exposes the transactional reproductive lifecycle operations. Every
// mutating method runs as one unit of work and returns the full cascade it
// applied.
type Service struct {
	store   PersistentStore
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	journal Journal
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for "today" validations and audit timestamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithJournal archives every committed cascade to journal.
func WithJournal(journal Journal) Option {
	return func(s *Service) {
		if journal != nil {
			s.journal = journal
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine falls back to the default invariant rules.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

type nowProvider interface {
	NowFunc() func() time.Time
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	if p, ok := s.store.(nowProvider); ok {
		if fn := p.NowFunc(); fn != nil {
			return fn().UTC()
		}
	}
	return time.Now().UTC()
}

func (s *Service) today() time.Time {
	return domain.Date(s.now())
}

// run executes fn as one transaction and routes the outcome through tracing,
// metrics, logging, audit, and the journal. fn reports the primary entity ID.
func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) (string, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()

	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		entityID, err = fn(tx)
		return err
	})
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	if err != nil {
		s.logFailure(op, entityID, err)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return res, err
	}

	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
	}
	s.logger.Debug("operation committed", "operation", op, "entity_id", entityID, "changes", len(res.Changes), "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, len(res.Changes), duration)
	s.archive(ctx, op, entityID, res)
	return res, nil
}

func (s *Service) logFailure(op, entityID string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
		s.logger.Debug("operation rejected", "operation", op, "entity_id", entityID, "error", err.Error())
	case errors.Is(err, domain.ErrConflict):
		s.logger.Warn("operation conflict", "operation", op, "entity_id", entityID, "error", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("operation aborted", "operation", op, "entity_id", entityID, "error", err.Error())
	default:
		s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err.Error())
	}
}

func (s *Service) archive(ctx context.Context, op, entityID string, res Result) {
	if s.journal == nil {
		return
	}
	farmerID, _ := FarmerFromContext(ctx)
	entry := JournalEntry{
		Operation:  op,
		FarmerID:   farmerID,
		EntityID:   entityID,
		RecordedAt: s.now(),
		Changes:    res.Changes,
		Violations: res.Violations,
	}
	if err := s.journal.Archive(ctx, entry); err != nil {
		s.logger.Error("journal archive failed", "operation", op, "entity_id", entityID, "error", err.Error())
	}
}

func (s *Service) view(ctx context.Context, fn func(view TransactionView) error) error {
	return s.store.View(ctx, fn)
}
