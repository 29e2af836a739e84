package medimate

import (
	"context"
	"time"

	"github.com/w-h-a/medimate/cache"
)

type Option func(*Options)

type Options struct {
	SystemPrompt string
	ContextLimit int
	TopK         int
	Timeout      time.Duration
	Cache        cache.Cache
	CacheTTL     time.Duration
	Context      context.Context
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// WithContextLimit sets how many recent turns go into each prompt.
func WithContextLimit(n int) Option {
	return func(o *Options) {
		o.ContextLimit = n
	}
}

// WithTopK sets how many prescription chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(o *Options) {
		o.TopK = k
	}
}

// WithTimeout bounds each extraction and generation call.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

func WithCache(c cache.Cache) Option {
	return func(o *Options) {
		o.Cache = c
	}
}

func WithCacheTTL(d time.Duration) Option {
	return func(o *Options) {
		o.CacheTTL = d
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		ContextLimit: 6,
		TopK:         4,
		Timeout:      30 * time.Second,
		CacheTTL:     24 * time.Hour,
		Context:      context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
