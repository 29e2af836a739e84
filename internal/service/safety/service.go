package safety

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/w-h-a/medimate/cache"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/prescription"
	"github.com/w-h-a/medimate/util/apperr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/w-h-a/medimate/internal/service/safety")

type Service struct {
	store      memory.Store
	cache      cache.Cache
	classifier *Classifier
	cacheTTL   time.Duration
}

// Check returns the session's safety report, classifying the session's
// medicines only when no report has been stored yet. Failed classifications
// are returned and never stored.
func (s *Service) Check(ctx context.Context, sessionId string) (memory.SafetyReport, error) {
	const op = "Service.Check"

	ctx, span := tracer.Start(ctx, "safety.check")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", sessionId))

	if report, ok := s.cached(ctx, sessionId); ok {
		span.SetAttributes(attribute.String("source", "cache"))
		return report, nil
	}

	report, err := s.store.GetSafetyReport(ctx, sessionId)
	if err == nil {
		span.SetAttributes(attribute.String("source", "store"))
		s.fill(ctx, sessionId, report)
		return report, nil
	}
	if !errors.Is(err, memory.ErrNotFound) {
		return memory.SafetyReport{}, apperr.Upstream(op, FailedMessage, err)
	}

	details, err := s.store.GetSessionDetails(ctx, sessionId)
	if errors.Is(err, memory.ErrNotFound) {
		return memory.SafetyReport{}, apperr.E(apperr.CodeNotFound, op, "session not found", err)
	}
	if err != nil {
		return memory.SafetyReport{}, apperr.Upstream(op, FailedMessage, err)
	}

	span.SetAttributes(attribute.String("source", "model"))

	report, err = s.classifier.Classify(ctx, prescription.ParseSummary(details))
	if err != nil {
		return memory.SafetyReport{}, err
	}

	winner, err := s.store.SaveSafetyReport(ctx, sessionId, report)
	if err != nil {
		return memory.SafetyReport{}, apperr.Upstream(op, FailedMessage, err)
	}

	s.fill(ctx, sessionId, winner)

	return winner, nil
}

func (s *Service) cached(ctx context.Context, sessionId string) (memory.SafetyReport, bool) {
	if s.cache == nil {
		return memory.SafetyReport{}, false
	}

	var report memory.SafetyReport

	ok, err := s.cache.GetJSON(ctx, cacheKey(sessionId), &report)
	if err != nil {
		slog.WarnContext(ctx, "safety cache read failed", "session_id", sessionId, "error", err)
		return memory.SafetyReport{}, false
	}

	return report.Normalize(), ok
}

func (s *Service) fill(ctx context.Context, sessionId string, report memory.SafetyReport) {
	if s.cache == nil {
		return
	}

	if err := s.cache.SetJSON(ctx, cacheKey(sessionId), report.Normalize(), s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "safety cache write failed", "session_id", sessionId, "error", err)
	}
}

func cacheKey(sessionId string) string {
	return "safety:" + sessionId
}

func New(
	store memory.Store,
	c cache.Cache,
	classifier *Classifier,
	cacheTTL time.Duration,
) *Service {
	return &Service{
		store:      store,
		cache:      c,
		classifier: classifier,
		cacheTTL:   cacheTTL,
	}
}
