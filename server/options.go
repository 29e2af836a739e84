package server

import (
	"context"
	"time"
)

type Option func(*Options)

type Options struct {
	Address         string
	ShutdownTimeout time.Duration
	// ReadHeaderTimeout and WriteTimeout bound a single request. WriteTimeout
	// must outlast the slowest model call.
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	MaxUploadBytes    int64
	Context           context.Context
}

func WithAddress(addr string) Option {
	return func(o *Options) {
		o.Address = addr
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = d
	}
}

func WithReadHeaderTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ReadHeaderTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = d
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(o *Options) {
		o.MaxUploadBytes = n
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Address:           ":8080",
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		MaxUploadBytes:    10 << 20,
		Context:           context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
