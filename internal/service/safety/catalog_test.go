package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/medimate/embedder/hash"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/memory/local"
	memorystorer "github.com/w-h-a/medimate/storer/memory"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

func newCatalog(opts ...memory.Option) (*Catalog, memory.Store, *vectorstore.VectorStore) {
	store := local.NewStore(opts...)
	vectors := vectorstore.New(
		vectorstore.WithStorer(memorystorer.NewStorer()),
		vectorstore.WithEmbedder(hash.NewEmbedder()),
	)
	return NewCatalog(store, vectors), store, vectors
}

func TestCanonicalListCarriesMetadata(t *testing.T) {
	drugs, err := loadCanonical()
	require.NoError(t, err)

	require.NotEmpty(t, drugs)
	assert.True(t, memory.ValidReferenceDrugs(drugs))
	for _, d := range drugs {
		assert.NotEmpty(t, d.Metadata["type"], d.Name)
	}
}

func TestLegacyListRebuildsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	catalog, store, _ := newCatalog(local.Seed([]memory.ReferenceDrug{{Name: "Aspirin"}, {Name: "Ibuprofen"}}, 2))

	rebuilt, err := catalog.Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, rebuilt)

	rebuilt, err = catalog.Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, rebuilt)

	drugs, err := store.ListReferenceDrugs(ctx)
	require.NoError(t, err)
	assert.True(t, memory.ValidReferenceDrugs(drugs))
	assert.Len(t, drugs, len(catalog.drugs))

	version, err := store.ReferenceSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReferenceSchemaVersion, version)
}

func TestOlderSchemaVersionRebuilds(t *testing.T) {
	canonical, err := loadCanonical()
	require.NoError(t, err)

	catalog, _, _ := newCatalog(local.Seed(canonical, 1))

	rebuilt, err := catalog.Migrate(context.Background())
	require.NoError(t, err)
	assert.True(t, rebuilt)
}

func TestMigrateReplacesReferenceNamespace(t *testing.T) {
	ctx := context.Background()
	catalog, _, vectors := newCatalog()

	require.NoError(t, vectors.Add(ctx, vectorstore.NamespaceReference, "stale", []string{"ibuprofen stale entry"}, nil))

	_, err := catalog.Migrate(ctx)
	require.NoError(t, err)

	matches, err := vectors.Query(ctx, vectorstore.NamespaceReference, "ibuprofen", 50, nil)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "stale", m.OwnerId)
	}
}

func TestSearchAndList(t *testing.T) {
	ctx := context.Background()
	catalog, _, _ := newCatalog()

	_, err := catalog.Migrate(ctx)
	require.NoError(t, err)

	found, err := catalog.Search(ctx, "Ibuprofen", 3)
	require.NoError(t, err)
	require.NotEmpty(t, found)

	var names []string
	for _, d := range found {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "Ibuprofen")

	all, err := catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(catalog.drugs))

	firstTwo, err := catalog.Search(ctx, "  ", 2)
	require.NoError(t, err)
	assert.Equal(t, all[:2], firstTwo)
}

func TestSearchDefaultsLimit(t *testing.T) {
	ctx := context.Background()
	catalog, _, _ := newCatalog()

	_, err := catalog.Migrate(ctx)
	require.NoError(t, err)

	listed, err := catalog.Search(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, listed, DefaultSearchLimit)

	found, err := catalog.Search(ctx, "Ibuprofen", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, found)
	assert.LessOrEqual(t, len(found), DefaultSearchLimit)
}
