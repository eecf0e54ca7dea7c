package core

import (
	"context"
	"time"

	"stockledger/pkg/domain"
)

// Logger captures the minimal structured logging surface used by the service.
// Arguments are alternating key/value pairs, matching log/slog conventions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock abstracts time acquisition for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the current time from the wrapped function.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus classifies the outcome of an audited operation.
type AuditStatus string

const (
	// AuditStatusSuccess marks operations that committed.
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusError marks operations that failed or were blocked.
	AuditStatusError AuditStatus = "error"
)

// AuditEntry describes one audited service operation.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for service operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a started span.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Option customizes a Service.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAuditRecorder attaches an audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder attaches a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

type operationMetadata struct {
	Entity domain.EntityType
	Action domain.Action
}

// operationCatalog maps audited operation names to the entity and action they
// touch. Operations absent from the catalog are logged and traced but not
// entered into the audit trail.
var operationCatalog = map[string]operationMetadata{
	"create_product":  {Entity: domain.EntityProduct, Action: domain.ActionCreate},
	"update_product":  {Entity: domain.EntityProduct, Action: domain.ActionUpdate},
	"delete_product":  {Entity: domain.EntityProduct, Action: domain.ActionDelete},
	"restock_product": {Entity: domain.EntityProduct, Action: domain.ActionUpdate},
	"attach_image":    {Entity: domain.EntityProduct, Action: domain.ActionUpdate},
	"remove_image":    {Entity: domain.EntityProduct, Action: domain.ActionUpdate},
	"create_customer": {Entity: domain.EntityCustomer, Action: domain.ActionCreate},
	"update_customer": {Entity: domain.EntityCustomer, Action: domain.ActionUpdate},
	"delete_customer": {Entity: domain.EntityCustomer, Action: domain.ActionDelete},
	"place_order":     {Entity: domain.EntityOrder, Action: domain.ActionCreate},
	"update_order":    {Entity: domain.EntityOrder, Action: domain.ActionUpdate},
	"delete_order":    {Entity: domain.EntityOrder, Action: domain.ActionDelete},
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := operationCatalog[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, opErr error, duration time.Duration) {
	meta, ok := operationCatalog[operation]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusError,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	s.audit.Record(ctx, entry)
}

// run wraps a service operation with tracing, metrics, audit, and logging.
// entityID is resolved after fn completes so create operations can report the
// generated id.
func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, operation)
	started := time.Now()
	entityID, err := fn(ctx)
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, operation, entityID, err, duration)
		s.logger.Error("operation failed", "operation", operation, "entity_id", entityID, "error", err)
		return err
	}
	s.recordAuditSuccess(ctx, operation, entityID, duration)
	s.logger.Debug("operation completed", "operation", operation, "entity_id", entityID, "duration", duration)
	return nil
}
