package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/MSSkowron/MicroURL/internal/config"
	"github.com/MSSkowron/MicroURL/internal/dto"
	"github.com/MSSkowron/MicroURL/internal/model"
	"github.com/MSSkowron/MicroURL/internal/repository"
	"github.com/MSSkowron/MicroURL/pkg/logger"
)

const (
	// DefaultListLimit is used when a listing is requested without a positive limit.
	DefaultListLimit = 10
	// MaxListLimit caps the number of micros a listing returns.
	MaxListLimit = 100
	// DefaultMaxAttempts is the number of codes tried before giving up on a registration.
	DefaultMaxAttempts = 10
)

var (
	// ErrMicroNotFound is returned when a micro is absent or expired.
	ErrMicroNotFound = repository.ErrMicroNotFound
	// ErrStoreUnavailable is returned when the micro store fails. Callers may retry.
	ErrStoreUnavailable = repository.ErrStoreUnavailable
	// ErrCodeSpaceExhausted is returned when no unused code was generated within the attempt limit.
	ErrCodeSpaceExhausted = errors.New("failed to generate an unused micro code")
	// ErrInvalidDestination is returned when the destination is empty.
	ErrInvalidDestination = errors.New("destination must not be empty")
)

// RegistryService is an interface that defines the methods required for micro management.
type RegistryService interface {
	// RegisterOrReuse returns the code of the live micro for destination, registering a new one if there is none.
	RegisterOrReuse(ctx context.Context, destination string, public bool) (string, error)

	// Resolve returns the destination of the live micro with the given code and records a hit.
	Resolve(ctx context.Context, code string) (string, error)

	// ListTop returns up to limit public micros with the most hits.
	ListTop(ctx context.Context, limit int) (dto.OrderedMicros, error)

	// ListRecent returns up to limit of the most recently registered public micros.
	ListRecent(ctx context.Context, limit int) (dto.OrderedMicros, error)

	// Sweep deletes expired micros and returns how many were removed.
	Sweep(ctx context.Context) (int64, error)

	// Ping reports whether the micro store is reachable.
	Ping(ctx context.Context) error
}

// Opt configures a RegistryServiceImpl.
type Opt func(*RegistryServiceImpl)

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Opt {
	return func(s *RegistryServiceImpl) {
		s.now = now
	}
}

// WithMaxAttempts sets how many codes a registration tries before failing with ErrCodeSpaceExhausted.
func WithMaxAttempts(n int) Opt {
	return func(s *RegistryServiceImpl) {
		s.maxAttempts = n
	}
}

// WithTracer sets the tracer used to record a span per operation.
func WithTracer(tracer trace.Tracer) Opt {
	return func(s *RegistryServiceImpl) {
		s.tracer = tracer
	}
}

// RegistryServiceImpl implements the RegistryService interface.
type RegistryServiceImpl struct {
	repo        repository.MicroRepository
	generator   CodeGenerator
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	tracer      trace.Tracer
}

// NewRegistryService creates a new RegistryServiceImpl registering micros that live for ttl.
func NewRegistryService(repo repository.MicroRepository, generator CodeGenerator, ttl time.Duration, opts ...Opt) (*RegistryServiceImpl, error) {
	s := &RegistryServiceImpl{
		repo:        repo,
		generator:   generator,
		ttl:         ttl,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		tracer:      noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl <= 0 {
		return nil, &config.ConfigurationError{Setting: "MICRO_TTL", Reason: "must be positive"}
	}
	if s.maxAttempts <= 0 {
		return nil, &config.ConfigurationError{Setting: "MAX_GENERATE_ATTEMPTS", Reason: "must be positive"}
	}

	return s, nil
}

func (s *RegistryServiceImpl) RegisterOrReuse(ctx context.Context, destination string, public bool) (code string, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistryService.RegisterOrReuse",
		trace.WithAttributes(attribute.Bool("micro.public", public)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(destination) == "" {
		return "", ErrInvalidDestination
	}

	if code, found, err := s.repo.FindByDestination(ctx, destination); err != nil {
		return "", fmt.Errorf("failed to find micro by destination: %w", err)
	} else if found {
		span.SetAttributes(attribute.Bool("micro.reused", true))
		return code, nil
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate := s.generator.GenerateCode()

		insertErr := s.repo.Insert(ctx, model.NewMicroEntry(candidate, destination, public, s.now(), s.ttl))
		switch {
		case insertErr == nil:
			logger.Info("Registered micro", "code", candidate, "destination", destination, "public", public)
			span.SetAttributes(attribute.Int("micro.attempts", attempt))
			return candidate, nil
		case errors.Is(insertErr, repository.ErrMicroCollision):
			logger.Debug("Micro code collision", "code", candidate, "attempt", attempt)
		case errors.Is(insertErr, repository.ErrDestinationTaken):
			winner, found, err := s.repo.FindByDestination(ctx, destination)
			if err != nil {
				return "", fmt.Errorf("failed to find micro by destination: %w", err)
			}
			if found {
				span.SetAttributes(attribute.Bool("micro.reused", true))
				return winner, nil
			}
		default:
			return "", fmt.Errorf("failed to register micro: %w", insertErr)
		}
	}

	logger.Error("Failed to generate an unused micro code", "destination", destination, "attempts", s.maxAttempts)
	return "", ErrCodeSpaceExhausted
}

func (s *RegistryServiceImpl) Resolve(ctx context.Context, code string) (destination string, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistryService.Resolve",
		trace.WithAttributes(attribute.String("micro.code", code)))
	defer func() { endSpan(span, err) }()

	entry, err := s.repo.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrMicroNotFound) {
			return "", ErrMicroNotFound
		}
		return "", fmt.Errorf("failed to lookup micro: %w", err)
	}

	if err := s.repo.IncrementHit(ctx, code); err != nil {
		logger.Warn("Failed to record micro hit", "code", code, "error", err)
	}

	return entry.Destination, nil
}

func (s *RegistryServiceImpl) ListTop(ctx context.Context, limit int) (micros dto.OrderedMicros, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistryService.ListTop")
	defer func() { endSpan(span, err) }()

	entries, err := s.repo.TopByHits(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list top micros: %w", err)
	}

	return toOrderedMicros(entries), nil
}

func (s *RegistryServiceImpl) ListRecent(ctx context.Context, limit int) (micros dto.OrderedMicros, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistryService.ListRecent")
	defer func() { endSpan(span, err) }()

	entries, err := s.repo.MostRecent(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent micros: %w", err)
	}

	return toOrderedMicros(entries), nil
}

func (s *RegistryServiceImpl) Sweep(ctx context.Context) (deleted int64, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistryService.Sweep")
	defer func() { endSpan(span, err) }()

	deleted, err = s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired micros: %w", err)
	}
	span.SetAttributes(attribute.Int64("micro.deleted", deleted))

	return deleted, nil
}

func (s *RegistryServiceImpl) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func toOrderedMicros(entries []*model.MicroEntry) dto.OrderedMicros {
	micros := make(dto.OrderedMicros, 0, len(entries))
	for _, e := range entries {
		micros = append(micros, dto.MicroLink{Code: e.Code, Destination: e.Destination})
	}
	return micros
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var _ RegistryService = (*RegistryServiceImpl)(nil)
