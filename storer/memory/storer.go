package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/w-h-a/medimate/storer"
)

type memoryStorer struct {
	options storer.Options
	records map[string]map[string]storer.Record
	mtx     sync.RWMutex
}

func (s *memoryStorer) Upsert(ctx context.Context, namespace string, records []storer.Record) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	bucket, ok := s.records[namespace]
	if !ok {
		bucket = map[string]storer.Record{}
		s.records[namespace] = bucket
	}

	now := time.Now().UTC()

	for _, rec := range records {
		cpy := make([]float32, len(rec.Embedding))
		copy(cpy, rec.Embedding)

		rec.Namespace = namespace
		rec.Embedding = cpy
		rec.Metadata = maps.Clone(rec.Metadata)
		if prev, exists := bucket[rec.Id]; exists {
			rec.CreatedAt = prev.CreatedAt
		} else {
			rec.CreatedAt = now
		}

		bucket[rec.Id] = rec
	}

	return nil
}

func (s *memoryStorer) Search(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]string) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	candidates := make([]storer.Record, 0, len(s.records[namespace]))

	for _, rec := range s.records[namespace] {
		if !storer.Matches(rec.Metadata, filter) {
			continue
		}
		rec.Score = float32(storer.CosineSimilarity(vector, rec.Embedding))
		rec.Metadata = maps.Clone(rec.Metadata)
		candidates = append(candidates, rec)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].Id < candidates[j].Id
		}
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

func (s *memoryStorer) Delete(ctx context.Context, namespace string, filter map[string]string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(filter) == 0 {
		delete(s.records, namespace)
		return nil
	}

	for id, rec := range s.records[namespace] {
		if storer.Matches(rec.Metadata, filter) {
			delete(s.records[namespace], id)
		}
	}

	return nil
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	s := &memoryStorer{
		options: options,
		records: map[string]map[string]storer.Record{},
		mtx:     sync.RWMutex{},
	}

	return s
}
