package storer

import "context"

// Storer is a namespaced vector index. Records are unique on (namespace, id).
type Storer interface {
	Upsert(ctx context.Context, namespace string, records []Record) error
	Search(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]string) ([]Record, error)
	// Delete removes every record in namespace whose metadata matches filter.
	// An empty filter clears the namespace.
	Delete(ctx context.Context, namespace string, filter map[string]string) error
}
