package hash

import (
	"context"

	"github.com/w-h-a/medimate/embedder"
)

type dimensionsKey struct{}

func WithDimensions(n int) embedder.Option {
	return func(o *embedder.Options) {
		o.Context = context.WithValue(o.Context, dimensionsKey{}, n)
	}
}

func DimensionsFrom(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(dimensionsKey{}).(int)
	return n, ok
}
