package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/w-h-a/medimate/memory"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

const (
	nodeRetrieve = "retrieve"
	nodeAssemble = "assemble"
	nodeGenerate = "generate"
	nodeFinalize = "finalize"
	nodeFail     = "fail"
)

var errEmptyAnswer = errors.New("model returned an empty answer")

func (s *Service) retrieve(ctx context.Context, state *State) {
	matches, err := s.vectors.Query(
		ctx,
		vectorstore.NamespacePrescriptions,
		state.Question,
		s.topK,
		map[string]string{vectorstore.PrescriptionKey: state.PrescriptionId},
	)
	if err != nil {
		state.Err = err
		return
	}

	history, err := s.store.ListTurns(ctx, state.SessionId, memory.WithTurnLimit(s.contextLimit))
	if err != nil {
		state.Err = err
		return
	}

	state.Context = matches
	state.History = history
}

func (s *Service) assemble(ctx context.Context, state *State) {
	state.Prompt = buildPrompt(s.systemPrompt, state.Context, state.History, state.Question)
}

func (s *Service) generate(ctx context.Context, state *State) {
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.generator.Generate(gctx, state.Prompt)
	if err != nil {
		state.Err = err
		return
	}

	answer = strings.TrimSpace(answer)
	if len(answer) == 0 {
		state.Err = errEmptyAnswer
		return
	}

	state.Answer = answer
	state.Generated = true
}

func (s *Service) finalize(ctx context.Context, state *State) {
	if err := s.store.AppendTurn(ctx, state.SessionId, memory.RoleUser, state.Question); err != nil {
		slog.ErrorContext(ctx, "failed to persist user turn", "session_id", state.SessionId, "error", err)
		return
	}

	if err := s.store.AppendTurn(ctx, state.SessionId, memory.RoleAssistant, state.Answer); err != nil {
		slog.ErrorContext(ctx, "failed to persist assistant turn", "session_id", state.SessionId, "error", err)
	}
}

func (s *Service) fail(ctx context.Context, state *State) {
	slog.ErrorContext(ctx, "failed to answer question", "session_id", state.SessionId, "prescription_id", state.PrescriptionId, "error", state.Err)

	state.Answer = FailedAnswer
	state.Generated = false
	state.Failed = true
}

func onError(next string) Router {
	return func(state *State) string {
		if state.Err != nil {
			return nodeFail
		}
		return next
	}
}

func (s *Service) buildGraph() *Graph {
	return NewGraph().
		AddNode(nodeRetrieve, s.retrieve).
		AddNode(nodeAssemble, s.assemble).
		AddNode(nodeGenerate, s.generate).
		AddNode(nodeFinalize, s.finalize).
		AddNode(nodeFail, s.fail).
		SetEntry(nodeRetrieve).
		AddConditionalEdge(nodeRetrieve, onError(nodeAssemble)).
		AddEdge(nodeAssemble, nodeGenerate).
		AddConditionalEdge(nodeGenerate, onError(nodeFinalize)).
		AddEdge(nodeFinalize, End).
		AddEdge(nodeFail, End)
}
