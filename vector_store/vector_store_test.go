package vectorstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/medimate/embedder"
	"github.com/w-h-a/medimate/embedder/hash"
	memorystorer "github.com/w-h-a/medimate/storer/memory"
	"github.com/w-h-a/medimate/util/apperr"
)

var _ embedder.Embedder = (*MockEmbedder)(nil)

type MockEmbedder struct {
	EmbedFunc      func(ctx context.Context, text string) ([]float32, error)
	EmbedCallCount int32
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&m.EmbedCallCount, 1)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1}, nil
}

func newStore() *VectorStore {
	return New(
		WithStorer(memorystorer.NewStorer()),
		WithEmbedder(hash.NewEmbedder()),
	)
}

func TestAddIsIdempotentOnId(t *testing.T) {
	ctx := context.Background()
	v := newStore()

	require.NoError(t, v.Add(ctx, NamespacePrescriptions, "rx-a", []string{"Paracetamol twice daily"}, map[string]string{"filename": "a.png"}))
	require.NoError(t, v.Add(ctx, NamespacePrescriptions, "rx-a", []string{"Paracetamol twice daily"}, map[string]string{"filename": "a.png"}))

	got, err := v.Query(ctx, NamespacePrescriptions, "paracetamol", 10, map[string]string{PrescriptionKey: "rx-a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rx-a-0", got[0].Id)
	assert.Equal(t, "rx-a", got[0].Metadata[PrescriptionKey])
	assert.Equal(t, "a.png", got[0].Metadata["filename"])
}

func TestReAddReplacesOldChunks(t *testing.T) {
	ctx := context.Background()
	v := newStore()

	require.NoError(t, v.Add(ctx, NamespacePrescriptions, "rx-a", []string{"one", "two"}, nil))
	require.NoError(t, v.Add(ctx, NamespacePrescriptions, "rx-a", []string{"three"}, nil))

	got, err := v.Query(ctx, NamespacePrescriptions, "one two three", 10, map[string]string{PrescriptionKey: "rx-a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "three", got[0].Content)
}

func TestQueryIsScopedToPrescription(t *testing.T) {
	ctx := context.Background()
	v := newStore()

	require.NoError(t, v.Add(ctx, NamespacePrescriptions, "rx-a", []string{"Paracetamol 500mg"}, nil))
	require.NoError(t, v.Add(ctx, NamespacePrescriptions, "rx-b", []string{"Amoxicillin 250mg"}, nil))

	for _, q := range []string{"Amoxicillin", "Paracetamol", "", "what should I take?"} {
		got, err := v.Query(ctx, NamespacePrescriptions, q, 5, map[string]string{PrescriptionKey: "rx-a"})
		require.NoError(t, err)
		for _, m := range got {
			assert.Equal(t, "rx-a", m.Metadata[PrescriptionKey], q)
		}
	}
}

func TestPrescriptionQueryRequiresFilter(t *testing.T) {
	v := newStore()

	_, err := v.Query(context.Background(), NamespacePrescriptions, "anything", 3, nil)

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))
}

func TestReferenceNamespaceNeedsNoFilter(t *testing.T) {
	ctx := context.Background()
	v := newStore()

	require.NoError(t, v.Add(ctx, NamespaceReference, "ibuprofen", []string{"Ibuprofen pain reliever"}, map[string]string{"type": "Analgesic"}))

	got, err := v.Query(ctx, NamespaceReference, "ibuprofen", 3, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Analgesic", got[0].Metadata["type"])

	require.NoError(t, v.Reset(ctx, NamespaceReference))

	got, err = v.Query(ctx, NamespaceReference, "ibuprofen", 3, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddingFailureSurfacesAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := memorystorer.NewStorer()

	good := New(WithStorer(s), WithEmbedder(hash.NewEmbedder()))
	require.NoError(t, good.Add(ctx, NamespacePrescriptions, "rx-a", []string{"keep me"}, nil))

	broken := New(WithStorer(s), WithEmbedder(&MockEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}))

	err := broken.Add(ctx, NamespacePrescriptions, "rx-a", []string{"replace me"}, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeUnavailable))

	_, err = broken.Query(ctx, NamespacePrescriptions, "keep", 3, map[string]string{PrescriptionKey: "rx-a"})
	assert.True(t, apperr.IsCode(err, apperr.CodeUnavailable))

	got, err := good.Query(ctx, NamespacePrescriptions, "keep", 3, map[string]string{PrescriptionKey: "rx-a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep me", got[0].Content)
}

func TestEmbeddingTimeout(t *testing.T) {
	v := New(
		WithStorer(memorystorer.NewStorer()),
		WithEmbedder(&MockEmbedder{
			EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}),
		WithTimeout(1),
	)

	_, err := v.Query(context.Background(), NamespaceReference, "slow", 3, nil)

	assert.True(t, apperr.IsCode(err, apperr.CodeTimeout))
}
