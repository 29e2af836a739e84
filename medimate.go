package medimate

import (
	"context"
	"io"
	"log/slog"

	"github.com/w-h-a/medimate/extractor"
	"github.com/w-h-a/medimate/generator"
	"github.com/w-h-a/medimate/internal/service/answer"
	"github.com/w-h-a/medimate/internal/service/ingest"
	"github.com/w-h-a/medimate/internal/service/safety"
	"github.com/w-h-a/medimate/internal/service/session"
	"github.com/w-h-a/medimate/memory"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

type (
	Question = answer.Request
	Reply    = answer.Reply
	Upload   = ingest.Upload
)

type Kit struct {
	store   memory.Store
	catalog *safety.Catalog
	ingest  *ingest.Service
	answer  *answer.Service
	safety  *safety.Service
	session *session.Service
}

// Start brings the reference drug list up to date. Call it once before
// serving.
func (k *Kit) Start(ctx context.Context) error {
	rebuilt, err := k.catalog.Migrate(ctx)
	if err != nil {
		return err
	}

	if rebuilt {
		slog.InfoContext(ctx, "reference drugs rebuilt", "version", safety.ReferenceSchemaVersion)
	}

	return nil
}

func (k *Kit) Upload(ctx context.Context, userId string, filename string, r io.Reader) (Upload, error) {
	return k.ingest.Upload(ctx, userId, filename, r)
}

func (k *Kit) ListPrescriptions(ctx context.Context, userId string) ([]memory.PrescriptionRef, error) {
	return k.session.ListPrescriptions(ctx, userId)
}

func (k *Kit) OpenSession(ctx context.Context, userId string, prescriptionId string) (memory.Session, error) {
	return k.session.Open(ctx, userId, prescriptionId)
}

func (k *Kit) Session(ctx context.Context, sessionId string) (memory.Session, error) {
	return k.session.Get(ctx, sessionId)
}

func (k *Kit) SessionDetails(ctx context.Context, sessionId string) (string, error) {
	return k.session.Details(ctx, sessionId)
}

func (k *Kit) History(ctx context.Context, sessionId string, limit int) ([]memory.Turn, error) {
	return k.session.History(ctx, sessionId, limit)
}

func (k *Kit) Ask(ctx context.Context, q Question) (Reply, error) {
	return k.answer.Ask(ctx, q)
}

func (k *Kit) CheckSafety(ctx context.Context, sessionId string) (memory.SafetyReport, error) {
	return k.safety.Check(ctx, sessionId)
}

func (k *Kit) ReferenceDrugs(ctx context.Context) ([]memory.ReferenceDrug, error) {
	return k.catalog.List(ctx)
}

func (k *Kit) SearchReferenceDrugs(ctx context.Context, query string, limit int) ([]memory.ReferenceDrug, error) {
	return k.catalog.Search(ctx, query, limit)
}

func (k *Kit) Close(ctx context.Context) error {
	return k.store.Close(ctx)
}

func New(
	store memory.Store,
	vectors *vectorstore.VectorStore,
	gen generator.Generator,
	ext extractor.Extractor,
	opts ...Option,
) *Kit {
	options := NewOptions(opts...)

	catalog := safety.NewCatalog(store, vectors)

	classifier := safety.NewClassifier(vectors, gen, options.Timeout)

	kit := &Kit{
		store:   store,
		catalog: catalog,
		ingest: ingest.New(
			store,
			vectors,
			ext,
			options.Timeout,
		),
		answer: answer.New(
			store,
			vectors,
			gen,
			options.SystemPrompt,
			options.TopK,
			options.ContextLimit,
			options.Timeout,
		),
		safety: safety.New(
			store,
			options.Cache,
			classifier,
			options.CacheTTL,
		),
		session: session.New(
			store,
		),
	}

	return kit
}
