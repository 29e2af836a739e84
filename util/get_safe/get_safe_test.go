package getsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringMap(t *testing.T) {
	payload := map[string]any{
		"metadata": map[string]any{
			"prescription_id": "rx-1",
			"page":            float64(2),
			"nested":          map[string]any{"x": "y"},
		},
		"content": "Date: today",
	}

	assert.Equal(t, map[string]string{"prescription_id": "rx-1", "page": "2"}, StringMap(payload, "metadata"))
	assert.Equal(t, "Date: today", String(payload, "content"))
	assert.Empty(t, String(payload, "missing"))
	assert.Empty(t, StringMap(payload, "missing"))
}
