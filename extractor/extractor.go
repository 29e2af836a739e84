package extractor

import (
	"context"
	"io"

	"github.com/w-h-a/medimate/prescription"
)

// Extractor turns an uploaded prescription document into structured data.
type Extractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (prescription.Extraction, error)
}
