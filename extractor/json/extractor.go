// Package json reads extraction documents that were produced ahead of time,
// for example by an OCR pipeline, from the uploaded file itself.
package json

import (
	"context"
	"io"

	"github.com/w-h-a/medimate/extractor"
	"github.com/w-h-a/medimate/prescription"
)

const maxDocumentSize = 4 << 20

type jsonExtractor struct {
	options extractor.Options
}

func (e *jsonExtractor) Extract(ctx context.Context, filename string, r io.Reader) (prescription.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return prescription.Extraction{}, err
	}

	bs, err := io.ReadAll(io.LimitReader(r, maxDocumentSize))
	if err != nil {
		return prescription.Extraction{}, err
	}

	return extractor.Decode(bs)
}

func NewExtractor(opts ...extractor.Option) extractor.Extractor {
	options := extractor.NewOptions(opts...)

	return &jsonExtractor{
		options: options,
	}
}
