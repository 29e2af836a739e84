package vertex

import (
	"context"

	"github.com/w-h-a/medimate/generator"
)

type projectKey struct{}

func WithProject(projectId string) generator.Option {
	return func(o *generator.Options) {
		o.Context = context.WithValue(o.Context, projectKey{}, projectId)
	}
}

func ProjectFrom(ctx context.Context) (string, bool) {
	projectId, ok := ctx.Value(projectKey{}).(string)
	return projectId, ok
}

type locationKey struct{}

func WithLocation(location string) generator.Option {
	return func(o *generator.Options) {
		o.Context = context.WithValue(o.Context, locationKey{}, location)
	}
}

func LocationFrom(ctx context.Context) (string, bool) {
	location, ok := ctx.Value(locationKey{}).(string)
	return location, ok
}
