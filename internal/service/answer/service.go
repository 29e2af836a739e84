package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/w-h-a/medimate/generator"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/util/apperr"
	vectorstore "github.com/w-h-a/medimate/vector_store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/w-h-a/medimate/internal/service/answer")

const (
	DefaultTopK         = 4
	DefaultContextLimit = 6
	DefaultTimeout      = 30 * time.Second
)

type Service struct {
	store        memory.Store
	vectors      *vectorstore.VectorStore
	generator    generator.Generator
	graph        *Graph
	systemPrompt string
	topK         int
	contextLimit int
	timeout      time.Duration
}

// Ask answers a question about one prescription within one session. The
// error return is reserved for bad requests; a pipeline failure comes back
// as a Reply with Failed set.
func (s *Service) Ask(ctx context.Context, req Request) (Reply, error) {
	const op = "Service.Ask"

	ctx, span := tracer.Start(ctx, "answer.ask")
	defer span.End()

	if len(strings.TrimSpace(req.Question)) == 0 {
		return Reply{}, apperr.E(apperr.CodeInvalidArgument, op, "question is required", nil)
	}

	sessionId, prescriptionId, err := s.resolve(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	span.SetAttributes(
		attribute.String("session_id", sessionId),
		attribute.String("prescription_id", prescriptionId),
	)

	state := &State{
		Question:       strings.TrimSpace(req.Question),
		PrescriptionId: prescriptionId,
		SessionId:      sessionId,
	}

	if err := s.graph.Run(ctx, state); err != nil {
		return Reply{}, apperr.E(apperr.CodeInternal, op, FailedAnswer, err)
	}

	span.SetAttributes(attribute.Bool("failed", state.Failed))

	return Reply{
		SessionId:      sessionId,
		PrescriptionId: prescriptionId,
		Answer:         state.Answer,
		Sources:        state.Context,
		Failed:         state.Failed,
	}, nil
}

// resolve pins the request to a session and the prescription it belongs to.
func (s *Service) resolve(ctx context.Context, req Request) (string, string, error) {
	const op = "Service.Ask"

	if len(req.SessionId) == 0 {
		if len(req.UserId) == 0 || len(req.PrescriptionId) == 0 {
			return "", "", apperr.E(apperr.CodeInvalidArgument, op, "session or user and prescription are required", nil)
		}

		sessionId, err := memory.OpenSession(ctx, s.store, req.UserId, req.PrescriptionId)
		if errors.Is(err, memory.ErrNotFound) {
			return "", "", apperr.E(apperr.CodeNotFound, op, "prescription not found", err)
		}
		if err != nil {
			return "", "", apperr.Upstream(op, FailedAnswer, err)
		}

		return sessionId, req.PrescriptionId, nil
	}

	sess, err := s.store.GetSession(ctx, req.SessionId)
	if errors.Is(err, memory.ErrNotFound) {
		return "", "", apperr.E(apperr.CodeNotFound, op, "session not found", err)
	}
	if err != nil {
		return "", "", apperr.Upstream(op, FailedAnswer, err)
	}

	if len(req.UserId) > 0 && req.UserId != sess.UserId {
		return "", "", apperr.E(apperr.CodeNotFound, op, "session not found", nil)
	}

	if len(req.PrescriptionId) > 0 && req.PrescriptionId != sess.PrescriptionId {
		return "", "", apperr.E(apperr.CodeInvalidArgument, op, "session belongs to another prescription", nil)
	}

	return sess.Id, sess.PrescriptionId, nil
}

func New(
	store memory.Store,
	vectors *vectorstore.VectorStore,
	gen generator.Generator,
	systemPrompt string,
	topK int,
	contextLimit int,
	timeout time.Duration,
) *Service {
	if len(strings.TrimSpace(systemPrompt)) == 0 {
		systemPrompt = DefaultSystemPrompt
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	if contextLimit <= 0 {
		contextLimit = DefaultContextLimit
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Service{
		store:        store,
		vectors:      vectors,
		generator:    gen,
		systemPrompt: systemPrompt,
		topK:         topK,
		contextLimit: contextLimit,
		timeout:      timeout,
	}

	s.graph = s.buildGraph()

	if err := s.graph.Validate(); err != nil {
		detail := "failed to build answer graph"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	return s
}
