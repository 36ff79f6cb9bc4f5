package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gpavault/internal/audit"
	"gpavault/internal/gpa/metrics"
	"gpavault/internal/gpa/models"
	dErrors "gpavault/pkg/domain-errors"
	"gpavault/pkg/platform/sentinel"
	"gpavault/pkg/requestcontext"
)

// Client-facing messages. Existing consumers match on these strings.
const (
	MsgInvalidInput = "Invalid input format"
	MsgNotFound     = "GPA data not found"
	MsgSaveFailed   = "Error saving GPA data"
	MsgLookupFailed = "Error retrieving GPA data"
)

// Store persists GPA records. Both writes are single atomic upserts: a
// missing record is created with exactly the supplied mapping.
type Store interface {
	Get(ctx context.Context, registrationNumber string) (*models.Record, error)
	MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error
	ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service owns the GPA record rules: input guards, upsert policy, and the
// translation of store failures into domain errors.
type Service struct {
	store          Store
	policy         models.UpsertPolicy
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicy selects merge (default) or replace semantics for upserts.
func WithPolicy(policy models.UpsertPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: models.PolicyMerge,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("gpavault/internal/gpa/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy reports the configured upsert policy.
func (s *Service) Policy() models.UpsertPolicy {
	return s.policy
}

// UpsertGpas creates the record for registrationNumber or applies gpas to
// the existing one according to the configured policy.
func (s *Service) UpsertGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	ctx, span := s.tracer.Start(ctx, "gpa.UpsertGpas", trace.WithAttributes(
		attribute.Int("gpa.semester_count", len(gpas)),
		attribute.String("gpa.policy", string(s.policy)),
	))
	defer span.End()
	start := time.Now()
	defer func() { s.observe("upsert", start) }()

	if err := validateUpsert(registrationNumber, gpas); err != nil {
		s.logger.WarnContext(ctx, "rejected gpa upsert",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		s.incrementUpsert(metrics.ResultInvalidInput)
		span.SetStatus(codes.Error, "invalid input")
		return dErrors.Wrap(err, dErrors.CodeBadRequest, MsgInvalidInput)
	}

	var err error
	if s.policy == models.PolicyReplace {
		err = s.store.ReplaceGpas(ctx, registrationNumber, gpas)
	} else {
		err = s.store.MergeGpas(ctx, registrationNumber, gpas)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save gpa data",
			"request_id", requestcontext.RequestID(ctx),
			"registration_number", registrationNumber,
			"policy", s.policy,
			"conflict", errors.Is(err, sentinel.ErrConflict),
			"error", err,
		)
		s.incrementUpsert(metrics.ResultStorageError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		return dErrors.Wrap(err, dErrors.CodeInternal, MsgSaveFailed)
	}

	s.incrementUpsert(metrics.ResultOK)
	if s.metrics != nil {
		s.metrics.AddSemestersWritten(len(gpas))
	}
	s.emitSaved(ctx, registrationNumber, gpas)
	return nil
}

// GetRecord returns the record for registrationNumber. There is no format
// check; an unknown or empty key is simply not found.
func (s *Service) GetRecord(ctx context.Context, registrationNumber string) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "gpa.GetRecord")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("get", start) }()

	record, err := s.store.Get(ctx, registrationNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementLookup(metrics.ResultNotFound)
			return nil, dErrors.New(dErrors.CodeNotFound, MsgNotFound)
		}
		s.logger.ErrorContext(ctx, "failed to load gpa data",
			"request_id", requestcontext.RequestID(ctx),
			"registration_number", registrationNumber,
			"error", err,
		)
		s.incrementLookup(metrics.ResultStorageError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, MsgLookupFailed)
	}
	if record.Gpas == nil {
		record.Gpas = map[string]float64{}
	}
	span.SetAttributes(attribute.Int("gpa.semester_count", len(record.Gpas)))
	s.incrementLookup(metrics.ResultOK)
	return record, nil
}

func validateUpsert(registrationNumber string, gpas map[string]float64) error {
	if registrationNumber == "" {
		return errors.New("registration number must not be empty")
	}
	if gpas == nil {
		return errors.New("gpas mapping is required")
	}
	var errs []error
	for _, semester := range models.SortedSemesters(gpas) {
		if err := models.ValidateSemester(semester); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) emitSaved(ctx context.Context, registrationNumber string, gpas map[string]float64) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp:          requestcontext.Now(ctx),
		Action:             string(audit.EventGpaSaved),
		RegistrationNumber: registrationNumber,
		Semesters:          models.SortedSemesters(gpas),
		Policy:             string(s.policy),
		RequestID:          requestcontext.RequestID(ctx),
		ClientIP:           requestcontext.ClientIP(ctx),
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementAuditEmitFailure()
		}
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", audit.EventGpaSaved,
			"error", err,
		)
	}
}

func (s *Service) incrementUpsert(result string) {
	if s.metrics != nil {
		s.metrics.IncrementUpsert(result)
	}
}

func (s *Service) incrementLookup(result string) {
	if s.metrics != nil {
		s.metrics.IncrementLookup(result)
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, time.Since(start))
	}
}
