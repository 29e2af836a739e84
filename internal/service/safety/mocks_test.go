package safety

import (
	"context"
	"sync/atomic"

	"github.com/w-h-a/medimate/embedder"
	"github.com/w-h-a/medimate/generator"
)

var _ generator.Generator = (*MockGenerator)(nil)

type MockGenerator struct {
	GenerateFunc      func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error)
	GenerateCallCount int32
	LastPrompt        atomic.Value
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
	atomic.AddInt32(&m.GenerateCallCount, 1)
	m.LastPrompt.Store(prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts...)
	}
	return `{"otc_medicines": [], "consult_medicines": []}`, nil
}

func (m *MockGenerator) Calls() int32 {
	return atomic.LoadInt32(&m.GenerateCallCount)
}

func (m *MockGenerator) Prompt() string {
	p, _ := m.LastPrompt.Load().(string)
	return p
}

var _ embedder.Embedder = (*MockEmbedder)(nil)

type MockEmbedder struct {
	EmbedFunc      func(ctx context.Context, text string) ([]float32, error)
	EmbedCallCount int32
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&m.EmbedCallCount, 1)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1}, nil
}
