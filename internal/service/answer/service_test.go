package answer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/medimate/embedder/hash"
	"github.com/w-h-a/medimate/generator"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/memory/local"
	"github.com/w-h-a/medimate/prescription"
	memorystorer "github.com/w-h-a/medimate/storer/memory"
	"github.com/w-h-a/medimate/util/apperr"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

var _ generator.Generator = (*MockGenerator)(nil)

type MockGenerator struct {
	GenerateFunc      func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error)
	GenerateCallCount int32
	Prompts           []string
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
	atomic.AddInt32(&m.GenerateCallCount, 1)
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts...)
	}
	return "Take it twice daily after food.", nil
}

func (m *MockGenerator) LastPrompt() string {
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

// failingTurns rejects every AppendTurn.
type failingTurns struct {
	memory.Store
}

func (f failingTurns) AppendTurn(ctx context.Context, sessionId string, role memory.Role, content string) error {
	return errors.New("write refused")
}

type fixture struct {
	store     memory.Store
	vectors   *vectorstore.VectorStore
	generator *MockGenerator
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := local.NewStore()
	vectors := vectorstore.New(
		vectorstore.WithStorer(memorystorer.NewStorer()),
		vectorstore.WithEmbedder(hash.NewEmbedder()),
	)
	gen := &MockGenerator{}

	return &fixture{
		store:     store,
		vectors:   vectors,
		generator: gen,
		service:   New(store, vectors, gen, "", 0, 0, 0),
	}
}

func (f *fixture) upload(t *testing.T, userId string, prescriptionId string, meds ...string) string {
	t.Helper()
	ctx := context.Background()

	extraction := prescription.Extraction{Date: "2024-03-01"}
	for _, m := range meds {
		extraction.Medicines = append(extraction.Medicines, prescription.Medicine{Name: m, Frequency: "twice daily"})
	}

	_, err := f.store.SavePrescription(ctx, prescription.Prescription{
		Id:         prescriptionId,
		UserId:     userId,
		Filename:   prescriptionId + ".png",
		Title:      extraction.Title(prescriptionId + ".png"),
		Extraction: extraction,
	})
	require.NoError(t, err)

	require.NoError(t, f.vectors.Add(ctx, vectorstore.NamespacePrescriptions, prescriptionId, []string{extraction.Document()}, nil))

	sid, err := memory.OpenSession(ctx, f.store, userId, prescriptionId)
	require.NoError(t, err)

	return sid
}

func TestAskPersistsAlternatingTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sid := f.upload(t, "u1", "rx-a", "Paracetamol")

	const n = 4
	for i := 0; i < n; i++ {
		f.generator.GenerateFunc = func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
			return fmt.Sprintf("answer %d", i), nil
		}

		reply, err := f.service.Ask(ctx, Request{SessionId: sid, Question: fmt.Sprintf("question %d", i)})
		require.NoError(t, err)
		assert.False(t, reply.Failed)
		assert.Equal(t, fmt.Sprintf("answer %d", i), reply.Answer)
		assert.Equal(t, "rx-a", reply.PrescriptionId)
	}

	turns, err := f.store.ListTurns(ctx, sid)
	require.NoError(t, err)
	require.Len(t, turns, 2*n)

	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, memory.RoleUser, turn.Role)
			assert.Equal(t, fmt.Sprintf("question %d", i/2), turn.Content)
		} else {
			assert.Equal(t, memory.RoleAssistant, turn.Role)
			assert.Equal(t, fmt.Sprintf("answer %d", i/2), turn.Content)
		}
	}
}

func TestPromptCarriesContextAndRecentHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sid := f.upload(t, "u1", "rx-a", "Paracetamol")

	for i := 0; i < 5; i++ {
		_, err := f.service.Ask(ctx, Request{SessionId: sid, Question: fmt.Sprintf("question %d", i)})
		require.NoError(t, err)
	}

	prompt := f.generator.LastPrompt()

	assert.Contains(t, prompt, DefaultSystemPrompt)
	assert.Contains(t, prompt, "- Paracetamol (Qty: N/A)")
	assert.NotContains(t, prompt, NoContextMarker)
	assert.Contains(t, prompt, "Current question:\nquestion 4")

	// the last six turns are questions 1..3 and their answers
	assert.NotContains(t, prompt, "[user]: question 0")
	assert.Contains(t, prompt, "[user]: question 1")
	assert.Contains(t, prompt, "[user]: question 3")
}

func TestEmptyContextUsesMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sid, err := f.store.GetOrCreateSession(ctx, "u1", "rx-empty")
	require.NoError(t, err)

	reply, err := f.service.Ask(ctx, Request{SessionId: sid, Question: "What is this for?"})
	require.NoError(t, err)

	assert.False(t, reply.Failed)
	assert.Empty(t, reply.Sources)
	assert.Contains(t, f.generator.LastPrompt(), NoContextMarker)
}

func TestRetrievalIsScopedToPrescription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sidA := f.upload(t, "u1", "rx-a", "Paracetamol")
	f.upload(t, "u1", "rx-b", "Amoxicillin")

	reply, err := f.service.Ask(ctx, Request{SessionId: sidA, Question: "Should I take Amoxicillin?"})
	require.NoError(t, err)

	assert.NotContains(t, f.generator.LastPrompt(), "Amoxicillin (Qty")
	for _, m := range reply.Sources {
		assert.Equal(t, "rx-a", m.Metadata[vectorstore.PrescriptionKey])
	}
}

func TestGenerationFailureIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sid := f.upload(t, "u1", "rx-a", "Paracetamol")

	f.generator.GenerateFunc = func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
		return "", errors.New("model unavailable")
	}

	reply, err := f.service.Ask(ctx, Request{SessionId: sid, Question: "How often?"})
	require.NoError(t, err)

	assert.True(t, reply.Failed)
	assert.Equal(t, FailedAnswer, reply.Answer)

	turns, err := f.store.ListTurns(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestEmptyAnswerFails(t *testing.T) {
	f := newFixture(t)
	sid := f.upload(t, "u1", "rx-a", "Paracetamol")

	f.generator.GenerateFunc = func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
		return "   ", nil
	}

	reply, err := f.service.Ask(context.Background(), Request{SessionId: sid, Question: "How often?"})
	require.NoError(t, err)
	assert.True(t, reply.Failed)
}

func TestRetrievalFailureSkipsGeneration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.upload(t, "u1", "rx-a", "Paracetamol")

	reply, err := f.service.Ask(ctx, Request{UserId: "u1", PrescriptionId: "rx-a", Question: "hi"})
	require.NoError(t, err)
	assert.False(t, reply.Failed)

	broken := New(brokenTurns{f.store}, f.vectors, f.generator, "", 0, 0, 0)
	before := atomic.LoadInt32(&f.generator.GenerateCallCount)

	reply, err = broken.Ask(ctx, Request{SessionId: reply.SessionId, Question: "again"})
	require.NoError(t, err)
	assert.True(t, reply.Failed)
	assert.Equal(t, before, atomic.LoadInt32(&f.generator.GenerateCallCount))
}

type brokenTurns struct {
	memory.Store
}

func (b brokenTurns) ListTurns(ctx context.Context, sessionId string, opts ...memory.ListTurnsOption) ([]memory.Turn, error) {
	return nil, errors.New("history unavailable")
}

func TestPersistenceFailureStillAnswers(t *testing.T) {
	f := newFixture(t)
	sid := f.upload(t, "u1", "rx-a", "Paracetamol")

	svc := New(failingTurns{f.store}, f.vectors, f.generator, "", 0, 0, 0)

	reply, err := svc.Ask(context.Background(), Request{SessionId: sid, Question: "How often?"})
	require.NoError(t, err)

	assert.False(t, reply.Failed)
	assert.Equal(t, "Take it twice daily after food.", reply.Answer)
}

func TestAskValidatesRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sid := f.upload(t, "u1", "rx-a", "Paracetamol")

	_, err := f.service.Ask(ctx, Request{SessionId: sid, Question: "  "})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	_, err = f.service.Ask(ctx, Request{Question: "hi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	_, err = f.service.Ask(ctx, Request{SessionId: "missing", Question: "hi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	_, err = f.service.Ask(ctx, Request{SessionId: sid, PrescriptionId: "rx-b", Question: "hi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	_, err = f.service.Ask(ctx, Request{SessionId: sid, UserId: "u2", Question: "hi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	assert.Equal(t, int32(0), f.generator.GenerateCallCount)
}

func TestAskCreatesSessionFromUserAndPrescription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sid := f.upload(t, "u1", "rx-a", "Paracetamol")

	reply, err := f.service.Ask(ctx, Request{UserId: "u1", PrescriptionId: "rx-a", Question: "hi"})
	require.NoError(t, err)

	assert.Equal(t, sid, reply.SessionId)
}

func TestAskWithoutSessionFillsSessionDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.SavePrescription(ctx, prescription.Prescription{
		Id:       "rx-a",
		UserId:   "u1",
		Filename: "rx.png",
		Title:    "Rx: Paracetamol, Ibuprofen",
		Extraction: prescription.Extraction{Medicines: []prescription.Medicine{
			{Name: "Paracetamol"},
			{Name: "Ibuprofen"},
		}},
	})
	require.NoError(t, err)

	reply, err := f.service.Ask(ctx, Request{UserId: "u1", PrescriptionId: "rx-a", Question: "hi"})
	require.NoError(t, err)

	sess, err := f.store.GetSession(ctx, reply.SessionId)
	require.NoError(t, err)
	assert.Equal(t, "Rx: Paracetamol, Ibuprofen", sess.Title)
	assert.Equal(t, "rx.png", sess.Filename)
	assert.Len(t, prescription.ParseSummary(sess.Details), 2)
}

func TestAskOnAnotherUsersPrescriptionIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.upload(t, "alice", "rx-a", "Paracetamol")

	reply, err := f.service.Ask(ctx, Request{UserId: "mallory", PrescriptionId: "rx-a", Question: "What is in it?"})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
	assert.Empty(t, reply.Sources)

	refs, err := f.store.ListPrescriptions(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = f.service.Ask(ctx, Request{UserId: "u1", PrescriptionId: "rx-missing", Question: "hi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	assert.Equal(t, int32(0), atomic.LoadInt32(&f.generator.GenerateCallCount))
}
