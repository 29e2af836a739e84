// Package storertest holds the behaviour every storer.Storer backend shares.
// Each case works in its own namespace so a persistent index can be reused.
package storertest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/medimate/storer"
)

func Run(t *testing.T, s storer.Storer) {
	t.Run("UpsertOverwritesById", func(t *testing.T) { upsertOverwritesById(t, s) })
	t.Run("SearchRespectsNamespaceFilterAndLimit", func(t *testing.T) { searchRespectsScope(t, s) })
	t.Run("Delete", func(t *testing.T) { deleteByFilter(t, s) })
}

func namespace(name string) string {
	return name + "_" + uuid.NewString()[:8]
}

func upsertOverwritesById(t *testing.T, s storer.Storer) {
	ctx := context.Background()
	ns := namespace("prescriptions")

	require.NoError(t, s.Upsert(ctx, ns, []storer.Record{
		{Id: "a-0", OwnerId: "a", Content: "old", Embedding: []float32{1, 0}},
	}))
	require.NoError(t, s.Upsert(ctx, ns, []storer.Record{
		{Id: "a-0", OwnerId: "a", Content: "new", Embedding: []float32{1, 0}},
	}))

	got, err := s.Search(ctx, ns, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Content)
	assert.Equal(t, "a", got[0].OwnerId)
	assert.Equal(t, ns, got[0].Namespace)
}

func searchRespectsScope(t *testing.T, s storer.Storer) {
	ctx := context.Background()
	ns, other := namespace("prescriptions"), namespace("otc_medicines")

	require.NoError(t, s.Upsert(ctx, ns, []storer.Record{
		{Id: "a-0", Metadata: map[string]string{"prescription_id": "a"}, Embedding: []float32{1, 0}},
		{Id: "b-0", Metadata: map[string]string{"prescription_id": "b"}, Embedding: []float32{1, 0}},
		{Id: "a-1", Metadata: map[string]string{"prescription_id": "a"}, Embedding: []float32{0, 1}},
	}))
	require.NoError(t, s.Upsert(ctx, other, []storer.Record{
		{Id: "ibuprofen", Embedding: []float32{1, 0}},
	}))

	got, err := s.Search(ctx, ns, []float32{1, 0}, 5, map[string]string{"prescription_id": "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-0", got[0].Id)
	assert.Equal(t, "a-1", got[1].Id)
	assert.Equal(t, "a", got[0].Metadata["prescription_id"])

	got, err = s.Search(ctx, ns, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Search(ctx, ns, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Search(ctx, other, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ibuprofen", got[0].Id)
}

func deleteByFilter(t *testing.T, s storer.Storer) {
	ctx := context.Background()
	ns := namespace("prescriptions")

	require.NoError(t, s.Upsert(ctx, ns, []storer.Record{
		{Id: "a-0", Metadata: map[string]string{"prescription_id": "a"}, Embedding: []float32{1, 0}},
		{Id: "b-0", Metadata: map[string]string{"prescription_id": "b"}, Embedding: []float32{1, 0}},
	}))

	require.NoError(t, s.Delete(ctx, ns, map[string]string{"prescription_id": "a"}))

	got, err := s.Search(ctx, ns, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b-0", got[0].Id)

	require.NoError(t, s.Delete(ctx, ns, nil))

	got, err = s.Search(ctx, ns, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
