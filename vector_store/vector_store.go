package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/w-h-a/medimate/storer"
	"github.com/w-h-a/medimate/util/apperr"
)

const (
	NamespacePrescriptions = "prescriptions"
	NamespaceReference     = "otc_medicines"

	// PrescriptionKey scopes prescription chunks. Queries against
	// NamespacePrescriptions must filter on it.
	PrescriptionKey = "prescription_id"
)

type Match struct {
	Id       string            `json:"id"`
	OwnerId  string            `json:"owner_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

type VectorStore struct {
	options Options
}

// Add embeds texts and stores them as the chunks owned by id, replacing
// whatever id owned before. Storers only delete by metadata, so the old
// chunks are dropped before the new ones are written; if the upsert fails
// id owns nothing and the caller must Add again.
func (v *VectorStore) Add(ctx context.Context, namespace string, id string, texts []string, metadata map[string]string) error {
	const op = "VectorStore.Add"

	if len(strings.TrimSpace(namespace)) == 0 || len(strings.TrimSpace(id)) == 0 {
		return apperr.E(apperr.CodeInvalidArgument, op, "namespace and id are required", nil)
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]string{}
	}
	meta["owner_id"] = id
	if namespace == NamespacePrescriptions {
		meta[PrescriptionKey] = id
	}

	records := make([]storer.Record, 0, len(texts))
	for i, text := range texts {
		if len(strings.TrimSpace(text)) == 0 {
			continue
		}

		vec, err := v.embed(ctx, text)
		if err != nil {
			return apperr.Upstream(op, "embedding service unavailable", err)
		}

		records = append(records, storer.Record{
			Id:        fmt.Sprintf("%s-%d", id, i),
			Namespace: namespace,
			OwnerId:   id,
			Content:   text,
			Metadata:  maps.Clone(meta),
			Embedding: vec,
		})
	}

	tctx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	if err := v.options.Storer.Delete(tctx, namespace, map[string]string{"owner_id": id}); err != nil {
		return apperr.Upstream(op, "index service unavailable", err)
	}

	if err := v.options.Storer.Upsert(tctx, namespace, records); err != nil {
		return apperr.Upstream(op, "index service unavailable", err)
	}

	return nil
}

func (v *VectorStore) Query(ctx context.Context, namespace string, text string, topK int, filter map[string]string) ([]Match, error) {
	const op = "VectorStore.Query"

	if namespace == NamespacePrescriptions && len(filter[PrescriptionKey]) == 0 {
		return nil, apperr.E(apperr.CodeInvalidArgument, op, "prescription filter is required", nil)
	}

	if topK < 1 {
		return []Match{}, nil
	}

	vec, err := v.embed(ctx, text)
	if err != nil {
		return nil, apperr.Upstream(op, "embedding service unavailable", err)
	}

	tctx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	records, err := v.options.Storer.Search(tctx, namespace, vec, topK, filter)
	if err != nil {
		return nil, apperr.Upstream(op, "index service unavailable", err)
	}

	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		matches = append(matches, Match{
			Id:       rec.Id,
			OwnerId:  rec.OwnerId,
			Content:  rec.Content,
			Metadata: rec.Metadata,
			Score:    rec.Score,
		})
	}

	return matches, nil
}

// Reset drops every chunk in namespace.
func (v *VectorStore) Reset(ctx context.Context, namespace string) error {
	tctx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	if err := v.options.Storer.Delete(tctx, namespace, nil); err != nil {
		return apperr.Upstream("VectorStore.Reset", "index service unavailable", err)
	}

	return nil
}

func (v *VectorStore) embed(ctx context.Context, text string) ([]float32, error) {
	tctx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	return v.options.Embedder.Embed(tctx, text)
}

func New(opts ...Option) *VectorStore {
	options := NewOptions(opts...)

	if options.Storer == nil {
		panic("storer is required")
	}

	if options.Embedder == nil {
		panic("embedder is required")
	}

	return &VectorStore{
		options: options,
	}
}
