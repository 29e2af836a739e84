package cache

import (
	"context"
)

type Option func(*Options)

type Options struct {
	Location string
	Prefix   string
	Context  context.Context
}

// WithLocation is a host:port address or a redis:// URL.
func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Prefix:  "medimate:",
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
