package extractor

import (
	"encoding/json"
	"fmt"

	"github.com/w-h-a/medimate/prescription"
	"github.com/w-h-a/medimate/util/fence"
)

// Decode parses an extraction document, tolerating a markdown code fence
// around it. A document that reports an error is rejected.
func Decode(bs []byte) (prescription.Extraction, error) {
	var doc struct {
		prescription.Extraction
		Error string `json:"error"`
	}

	if err := json.Unmarshal([]byte(fence.Strip(string(bs))), &doc); err != nil {
		return prescription.Extraction{}, fmt.Errorf("invalid extraction document: %w", err)
	}

	if len(doc.Error) > 0 {
		return prescription.Extraction{}, fmt.Errorf("extraction failed: %s", doc.Error)
	}

	return doc.Extraction, nil
}
