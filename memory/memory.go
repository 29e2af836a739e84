package memory

import (
	"context"
	"errors"

	"github.com/w-h-a/medimate/prescription"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store holds prescriptions, sessions, conversation turns, safety reports
// and the reference drug list. Creation methods are insert-if-absent and
// return the stored winner.
type Store interface {
	SavePrescription(ctx context.Context, p prescription.Prescription) (string, error)
	GetPrescription(ctx context.Context, prescriptionId string) (prescription.Prescription, error)
	GetPrescriptionByFilename(ctx context.Context, userId string, filename string) (string, error)
	GetOrCreateSession(ctx context.Context, userId string, prescriptionId string, opts ...SessionOption) (string, error)
	ListPrescriptions(ctx context.Context, userId string) ([]PrescriptionRef, error)
	GetSession(ctx context.Context, sessionId string) (Session, error)
	GetSessionDetails(ctx context.Context, sessionId string) (string, error)
	AppendTurn(ctx context.Context, sessionId string, role Role, content string) error
	ListTurns(ctx context.Context, sessionId string, opts ...ListTurnsOption) ([]Turn, error)
	GetSafetyReport(ctx context.Context, sessionId string) (SafetyReport, error)
	SaveSafetyReport(ctx context.Context, sessionId string, report SafetyReport) (SafetyReport, error)
	ReferenceSchemaVersion(ctx context.Context) (int, error)
	ListReferenceDrugs(ctx context.Context) ([]ReferenceDrug, error)
	ReplaceReferenceDrugs(ctx context.Context, drugs []ReferenceDrug, version int) error
	Close(ctx context.Context) error
}
