package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/medimate/extractor"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/prescription"
	"github.com/w-h-a/medimate/util/apperr"
	vectorstore "github.com/w-h-a/medimate/vector_store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/w-h-a/medimate/internal/service/ingest")

const FailedMessage = "Could not read this prescription. Please try another file."

type Upload struct {
	PrescriptionId string `json:"prescription_id"`
	SessionId      string `json:"session_id"`
	Title          string `json:"title"`
	Existing       bool   `json:"existing"`
}

type Service struct {
	store     memory.Store
	vectors   *vectorstore.VectorStore
	extractor extractor.Extractor
	timeout   time.Duration
}

// Upload turns a document into a prescription with its index entry and
// session. A filename the user uploaded before resolves to the existing
// prescription without extracting again.
func (s *Service) Upload(ctx context.Context, userId string, filename string, r io.Reader) (Upload, error) {
	const op = "Service.Upload"

	ctx, span := tracer.Start(ctx, "ingest.upload")
	defer span.End()

	userId = strings.TrimSpace(userId)
	filename = strings.TrimSpace(filename)

	if len(userId) == 0 || len(filename) == 0 {
		return Upload{}, apperr.E(apperr.CodeInvalidArgument, op, "user and filename are required", nil)
	}

	span.SetAttributes(attribute.String("filename", filename))

	existing, err := s.store.GetPrescriptionByFilename(ctx, userId, filename)
	if err == nil {
		span.SetAttributes(attribute.Bool("existing", true))
		return s.existing(ctx, userId, existing)
	}
	if !errors.Is(err, memory.ErrNotFound) {
		return Upload{}, apperr.Upstream(op, FailedMessage, err)
	}

	extraction, err := s.extract(ctx, filename, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract")
		return Upload{}, err
	}

	extraction = extraction.Sanitize()

	rx := prescription.Prescription{
		Id:         uuid.NewString(),
		UserId:     userId,
		Filename:   filename,
		Title:      extraction.Title(filename),
		Extraction: extraction,
		CreatedAt:  time.Now().UTC(),
	}

	winner, err := s.store.SavePrescription(ctx, rx)
	if err != nil {
		return Upload{}, apperr.Upstream(op, FailedMessage, err)
	}

	if winner != rx.Id {
		// a concurrent upload of the same file got there first
		span.SetAttributes(attribute.Bool("existing", true))
		return s.existing(ctx, userId, winner)
	}

	if err := s.index(ctx, rx); err != nil {
		span.RecordError(err)
		return Upload{}, err
	}

	sessionId, err := s.store.GetOrCreateSession(
		ctx,
		userId,
		rx.Id,
		memory.WithTitle(rx.Title),
		memory.WithFilename(filename),
		memory.WithDetails(extraction.Summary()),
	)
	if err != nil {
		return Upload{}, apperr.Upstream(op, FailedMessage, err)
	}

	slog.InfoContext(ctx, "prescription ingested", "prescription_id", rx.Id, "session_id", sessionId, "medicines", len(extraction.Medicines))

	return Upload{
		PrescriptionId: rx.Id,
		SessionId:      sessionId,
		Title:          rx.Title,
	}, nil
}

// existing resolves a stored prescription to its session. A prescription
// without a session belongs to an upload that stopped before indexing
// finished, so it is indexed again before the session is created.
func (s *Service) existing(ctx context.Context, userId string, prescriptionId string) (Upload, error) {
	rx, err := s.store.GetPrescription(ctx, prescriptionId)
	if err != nil {
		return Upload{}, apperr.Upstream("Service.Upload", FailedMessage, err)
	}

	opened, err := s.hasSession(ctx, userId, prescriptionId)
	if err != nil {
		return Upload{}, apperr.Upstream("Service.Upload", FailedMessage, err)
	}

	if !opened {
		slog.InfoContext(ctx, "reindexing unfinished upload", "prescription_id", prescriptionId)
		if err := s.index(ctx, rx); err != nil {
			return Upload{}, err
		}
	}

	sessionId, err := s.store.GetOrCreateSession(
		ctx,
		userId,
		prescriptionId,
		memory.WithTitle(rx.Title),
		memory.WithFilename(rx.Filename),
		memory.WithDetails(rx.Extraction.Summary()),
	)
	if err != nil {
		return Upload{}, apperr.Upstream("Service.Upload", FailedMessage, err)
	}

	sess, err := s.store.GetSession(ctx, sessionId)
	if err != nil {
		return Upload{}, apperr.Upstream("Service.Upload", FailedMessage, err)
	}

	return Upload{
		PrescriptionId: prescriptionId,
		SessionId:      sessionId,
		Title:          sess.Title,
		Existing:       true,
	}, nil
}

func (s *Service) index(ctx context.Context, rx prescription.Prescription) error {
	return s.vectors.Add(
		ctx,
		vectorstore.NamespacePrescriptions,
		rx.Id,
		[]string{rx.Extraction.Document()},
		map[string]string{"filename": rx.Filename},
	)
}

func (s *Service) hasSession(ctx context.Context, userId string, prescriptionId string) (bool, error) {
	refs, err := s.store.ListPrescriptions(ctx, userId)
	if err != nil {
		return false, err
	}

	for _, ref := range refs {
		if ref.Id == prescriptionId {
			return true, nil
		}
	}

	return false, nil
}

func (s *Service) extract(ctx context.Context, filename string, r io.Reader) (prescription.Extraction, error) {
	const op = "Service.Upload"

	if r == nil {
		return prescription.Extraction{}, apperr.E(apperr.CodeInvalidArgument, op, "file is required", nil)
	}

	ectx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	extraction, err := s.extractor.Extract(ectx, filename, r)
	if err != nil {
		slog.ErrorContext(ctx, "failed to extract prescription", "filename", filename, "error", err)
		return prescription.Extraction{}, apperr.Upstream(op, FailedMessage, err)
	}

	return extraction, nil
}

func New(
	store memory.Store,
	vectors *vectorstore.VectorStore,
	ext extractor.Extractor,
	timeout time.Duration,
) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Service{
		store:     store,
		vectors:   vectors,
		extractor: ext,
		timeout:   timeout,
	}
}
