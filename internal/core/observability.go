package core

import (
	"context"
	"herdcore/pkg/domain"
	"time"

	"go.uber.org/zap"
)

// Logger is the structured logging contract used by the service. Arguments
// after the message are alternating key/value pairs.
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

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to the service Logger contract.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return zapLogger{sugar: logger.Sugar()}
}

func (l zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function result in UTC, or the system time when nil.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// AuditStatus classifies an audited operation outcome.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry records one engine operation.
type AuditEntry struct {
	Operation string            `json:"operation"`
	Entity    domain.EntityType `json:"entity"`
	Action    domain.Action     `json:"action"`
	EntityID  string            `json:"entity_id,omitempty"`
	FarmerID  string            `json:"farmer_id,omitempty"`
	Status    AuditStatus       `json:"status"`
	Error     string            `json:"error,omitempty"`
	Changes   int               `json:"changes"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditRecorder receives audit entries for every mutating operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// LoggerAuditRecorder writes audit entries through a Logger.
type LoggerAuditRecorder struct {
	logger Logger
}

// NewLoggerAuditRecorder constructs an audit recorder backed by logger.
func NewLoggerAuditRecorder(logger Logger) *LoggerAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LoggerAuditRecorder{logger: logger}
}

// Record implements AuditRecorder.
func (r *LoggerAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"entity_id", entry.EntityID,
		"status", string(entry.Status),
		"changes", entry.Changes,
		"duration", entry.Duration,
	}
	if entry.FarmerID != "" {
		args = append(args, "farmer_id", entry.FarmerID)
	}
	if entry.Status == AuditStatusError {
		r.logger.Warn("audit", append(args, "error", entry.Error)...)
		return
	}
	r.logger.Info("audit", args...)
}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer opens a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type operationMetadata struct {
	entity domain.EntityType
	action domain.Action
}

var auditOperations = map[string]operationMetadata{
	opRegisterAnimal:        {entity: domain.EntityAnimal, action: domain.ActionCreate},
	opRegisterSemenStraw:    {entity: domain.EntitySemenStraw, action: domain.ActionCreate},
	opRecordHeatObservation: {entity: domain.EntityHeatCycle, action: domain.ActionCreate},
	opConfirmScheduledHeat:  {entity: domain.EntityHeatCycle, action: domain.ActionUpdate},
	opReleaseHeatCycle:      {entity: domain.EntityHeatCycle, action: domain.ActionUpdate},
	opDeleteHeatCycle:       {entity: domain.EntityHeatCycle, action: domain.ActionDelete},
	opCreateInsemination:    {entity: domain.EntityInsemination, action: domain.ActionCreate},
	opMarkInseminationFail:  {entity: domain.EntityInsemination, action: domain.ActionUpdate},
	opDeleteInsemination:    {entity: domain.EntityInsemination, action: domain.ActionDelete},
	opRecordPregnancyCheck:  {entity: domain.EntityPregnancyCheck, action: domain.ActionCreate},
	opUpdatePregnancyCheck:  {entity: domain.EntityPregnancyCheck, action: domain.ActionUpdate},
	opDeletePregnancyCheck:  {entity: domain.EntityPregnancyCheck, action: domain.ActionDelete},
	opRecordDelivery:        {entity: domain.EntityDelivery, action: domain.ActionCreate},
	opUpdateDelivery:        {entity: domain.EntityDelivery, action: domain.ActionUpdate},
	opDeleteDelivery:        {entity: domain.EntityDelivery, action: domain.ActionDelete},
	opCloseLactation:        {entity: domain.EntityLactation, action: domain.ActionUpdate},
	opRecordLactationPeak:   {entity: domain.EntityLactation, action: domain.ActionUpdate},
}

const (
	opRegisterAnimal        = "register_animal"
	opRegisterSemenStraw    = "register_semen_straw"
	opRecordHeatObservation = "record_heat_observation"
	opConfirmScheduledHeat  = "confirm_scheduled_heat"
	opReleaseHeatCycle      = "release_heat_cycle"
	opDeleteHeatCycle       = "delete_heat_cycle"
	opCreateInsemination    = "create_insemination"
	opMarkInseminationFail  = "mark_insemination_failed"
	opDeleteInsemination    = "delete_insemination"
	opRecordPregnancyCheck  = "record_pregnancy_check"
	opUpdatePregnancyCheck  = "update_pregnancy_check"
	opDeletePregnancyCheck  = "delete_pregnancy_check"
	opRecordDelivery        = "record_delivery"
	opUpdateDelivery        = "update_delivery"
	opDeleteDelivery        = "delete_delivery"
	opCloseLactation        = "close_lactation"
	opRecordLactationPeak   = "record_lactation_peak"
)

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, changes int, duration time.Duration) {
	meta, ok := auditOperations[operation]
	if !ok {
		return
	}
	farmerID, _ := FarmerFromContext(ctx)
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		FarmerID:  farmerID,
		Status:    AuditStatusSuccess,
		Changes:   changes,
		Duration:  duration,
		Timestamp: s.now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	meta, ok := auditOperations[operation]
	if !ok {
		return
	}
	farmerID, _ := FarmerFromContext(ctx)
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		FarmerID:  farmerID,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.now(),
	})
}
