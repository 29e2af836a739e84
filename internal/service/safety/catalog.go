package safety

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/w-h-a/medimate/memory"
	vectorstore "github.com/w-h-a/medimate/vector_store"
	"github.com/w-h-a/medimate/util/apperr"
)

// ReferenceSchemaVersion is bumped whenever the shape of the stored
// reference list changes. Older lists are rebuilt at startup.
const ReferenceSchemaVersion = 2

// DefaultSearchLimit applies when Search is called with limit <= 0.
const DefaultSearchLimit = 10

//go:embed otc_medicines.json
var canonicalDrugs []byte

type Catalog struct {
	store   memory.Store
	vectors *vectorstore.VectorStore
	drugs   []memory.ReferenceDrug
}

// Migrate makes the stored reference list and the reference namespace match
// the canonical list when the stored one is missing, older or legacy.
func (c *Catalog) Migrate(ctx context.Context) (bool, error) {
	const op = "Catalog.Migrate"

	version, err := c.store.ReferenceSchemaVersion(ctx)
	if err != nil {
		return false, apperr.Upstream(op, "reference list unavailable", err)
	}

	stored, err := c.store.ListReferenceDrugs(ctx)
	if err != nil {
		return false, apperr.Upstream(op, "reference list unavailable", err)
	}

	if version >= ReferenceSchemaVersion && len(stored) > 0 && memory.ValidReferenceDrugs(stored) {
		return false, nil
	}

	slog.InfoContext(ctx, "rebuilding reference drugs", "stored_version", version, "stored_count", len(stored), "version", ReferenceSchemaVersion)

	if err := c.vectors.Reset(ctx, vectorstore.NamespaceReference); err != nil {
		return false, err
	}

	for _, drug := range c.drugs {
		if err := c.vectors.Add(ctx, vectorstore.NamespaceReference, referenceId(drug.Name), []string{referenceText(drug)}, drug.Metadata); err != nil {
			return false, err
		}
	}

	// the version is written after the index so a failed rebuild is retried
	if err := c.store.ReplaceReferenceDrugs(ctx, c.drugs, ReferenceSchemaVersion); err != nil {
		return false, apperr.Upstream(op, "reference list unavailable", err)
	}

	return true, nil
}

func (c *Catalog) List(ctx context.Context) ([]memory.ReferenceDrug, error) {
	drugs, err := c.store.ListReferenceDrugs(ctx)
	if err != nil {
		return nil, apperr.Upstream("Catalog.List", "reference list unavailable", err)
	}

	return drugs, nil
}

// Search runs a similarity search over the reference namespace. An empty
// query lists the stored entries instead. Both return at most limit entries.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]memory.ReferenceDrug, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if len(strings.TrimSpace(query)) == 0 {
		drugs, err := c.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(drugs) > limit {
			drugs = drugs[:limit]
		}
		return drugs, nil
	}

	matches, err := c.vectors.Query(ctx, vectorstore.NamespaceReference, query, limit, nil)
	if err != nil {
		return nil, err
	}

	drugs := make([]memory.ReferenceDrug, 0, len(matches))
	for _, m := range matches {
		meta := map[string]string{}
		if t, ok := m.Metadata["type"]; ok {
			meta["type"] = t
		}
		drugs = append(drugs, memory.ReferenceDrug{
			Name:     m.Metadata["name"],
			Metadata: meta,
		})
	}

	return drugs, nil
}

func referenceId(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

func referenceText(drug memory.ReferenceDrug) string {
	return fmt.Sprintf("%s (%s): available over the counter", drug.Name, drug.Category())
}

func loadCanonical() ([]memory.ReferenceDrug, error) {
	var drugs []memory.ReferenceDrug
	if err := json.Unmarshal(canonicalDrugs, &drugs); err != nil {
		return nil, err
	}

	for i := range drugs {
		if drugs[i].Metadata == nil {
			drugs[i].Metadata = map[string]string{}
		}
		drugs[i].Metadata["name"] = drugs[i].Name
	}

	return drugs, nil
}

func NewCatalog(store memory.Store, vectors *vectorstore.VectorStore) *Catalog {
	drugs, err := loadCanonical()
	if err != nil {
		detail := "failed to load canonical reference drugs"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	return &Catalog{
		store:   store,
		vectors: vectors,
		drugs:   drugs,
	}
}
