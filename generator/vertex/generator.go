package vertex

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/w-h-a/medimate/generator"
)

type vertexGenerator struct {
	options generator.Options
	client  *vertexgenai.Client
}

func (g *vertexGenerator) Generate(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
	genOpts := generator.NewGenerateOptions(opts...)

	model := g.client.GenerativeModel(g.options.Model)
	model.SetTemperature(g.options.Temperature)
	model.SetMaxOutputTokens(int32(g.options.MaxTokens))
	if genOpts.JSON {
		model.ResponseMIMEType = "application/json"
	}

	rsp, err := model.GenerateContent(ctx, vertexgenai.Text(generator.FullPrompt(g.options, prompt)))
	if err != nil {
		return "", err
	}

	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil || len(rsp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Vertex")
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if text, ok := part.(vertexgenai.Text); ok {
			b.WriteString(string(text))
		}
	}

	return b.String(), nil
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = "gemini-1.5-flash"
	}

	projectId, _ := ProjectFrom(options.Context)
	location, ok := LocationFrom(options.Context)
	if !ok {
		location = "us-central1"
	}

	if len(projectId) == 0 {
		panic("missing project for vertex generator")
	}

	client, err := vertexgenai.NewClient(context.Background(), projectId, location)
	if err != nil {
		detail := "failed to initialize vertex generator"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	return &vertexGenerator{
		options: options,
		client:  client,
	}
}
