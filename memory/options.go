package memory

import (
	"context"
)

type SessionOption func(*SessionOptions)

type SessionOptions struct {
	Title    string
	Filename string
	Details  string
	Context  context.Context
}

func WithTitle(title string) SessionOption {
	return func(o *SessionOptions) {
		o.Title = title
	}
}

func WithFilename(filename string) SessionOption {
	return func(o *SessionOptions) {
		o.Filename = filename
	}
}

func WithDetails(details string) SessionOption {
	return func(o *SessionOptions) {
		o.Details = details
	}
}

func NewSessionOptions(opts ...SessionOption) SessionOptions {
	options := SessionOptions{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type ListTurnsOption func(*ListTurnsOptions)

type ListTurnsOptions struct {
	Limit   int
	Context context.Context
}

// WithTurnLimit keeps the most recent n turns. Zero or less means all.
func WithTurnLimit(n int) ListTurnsOption {
	return func(o *ListTurnsOptions) {
		o.Limit = n
	}
}

func NewListTurnsOptions(opts ...ListTurnsOption) ListTurnsOptions {
	options := ListTurnsOptions{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type Option func(*Options)

type Options struct {
	Location string
	Database string
	Context  context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithDatabase(db string) Option {
	return func(o *Options) {
		o.Database = db
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Database: "medimate",
		Context:  context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
