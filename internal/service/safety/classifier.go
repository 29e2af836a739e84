package safety

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/w-h-a/medimate/generator"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/prescription"
	"github.com/w-h-a/medimate/util/apperr"
	vectorstore "github.com/w-h-a/medimate/vector_store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	referenceTopK = 3

	DefaultTimeout = 60 * time.Second

	// FailedMessage is what callers show when a classification fails.
	FailedMessage = "Safety check failed. Please try again."
)

type Classifier struct {
	vectors   *vectorstore.VectorStore
	generator generator.Generator
	timeout   time.Duration
}

// Classify partitions medicine lines into OTC and consult lists. Lines may
// be summary lines or bare names.
func (c *Classifier) Classify(ctx context.Context, medicines []string) (memory.SafetyReport, error) {
	const op = "Classifier.Classify"

	ctx, span := tracer.Start(ctx, "safety.classify")
	defer span.End()

	lines := make([]string, 0, len(medicines))
	for _, med := range medicines {
		if len(strings.TrimSpace(med)) == 0 {
			continue
		}
		lines = append(lines, med)
	}

	span.SetAttributes(attribute.Int("medicines", len(lines)))

	if len(lines) == 0 {
		return memory.SafetyReport{}.Normalize(), nil
	}

	refs := make([]reference, 0, len(lines))
	for _, line := range lines {
		name := prescription.LineName(line)
		if len(name) == 0 {
			continue
		}

		matches, err := c.vectors.Query(ctx, vectorstore.NamespaceReference, name, referenceTopK, nil)
		if err != nil {
			slog.WarnContext(ctx, "reference lookup failed", "medicine", name, "error", err)
			continue
		}

		refs = append(refs, reference{name: name, matches: matches})
	}

	gctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.generator.Generate(gctx, buildPrompt(lines, refs), generator.WithJSONOutput())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate")
		return memory.SafetyReport{}, apperr.E(upstreamCode(err), op, FailedMessage, err)
	}

	report, err := parseReport(raw)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse safety classification", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse")
		return memory.SafetyReport{}, apperr.E(apperr.CodeInternal, op, FailedMessage, err)
	}

	span.SetAttributes(
		attribute.Int("otc", len(report.OTC)),
		attribute.Int("consult", len(report.Consult)),
	)

	return report.Normalize(), nil
}

func upstreamCode(err error) apperr.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.CodeTimeout
	}
	return apperr.CodeUnavailable
}

func NewClassifier(vectors *vectorstore.VectorStore, gen generator.Generator, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Classifier{
		vectors:   vectors,
		generator: gen,
		timeout:   timeout,
	}
}
