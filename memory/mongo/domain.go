package mongo

import (
	"time"

	"github.com/w-h-a/medimate/memory"
)

const (
	prescriptionsCollection  = "prescriptions"
	sessionsCollection       = "sessions"
	turnsCollection          = "turns"
	safetyReportsCollection  = "safety_reports"
	referenceDrugsCollection = "reference_drugs"
	metaCollection           = "meta"

	referenceSchemaId = "reference_schema"
)

type sessionDoc struct {
	SessionId      string    `bson:"session_id"`
	UserId         string    `bson:"user_id"`
	PrescriptionId string    `bson:"prescription_id"`
	Title          string    `bson:"title"`
	Filename       string    `bson:"filename"`
	Details        string    `bson:"details"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d sessionDoc) toSession() memory.Session {
	return memory.Session{
		Id:             d.SessionId,
		UserId:         d.UserId,
		PrescriptionId: d.PrescriptionId,
		Title:          d.Title,
		Filename:       d.Filename,
		Details:        d.Details,
		CreatedAt:      d.CreatedAt,
	}
}

type turnDoc struct {
	SessionId string    `bson:"session_id"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

type safetyReportDoc struct {
	SessionId string              `bson:"session_id"`
	Report    memory.SafetyReport `bson:"report"`
	CreatedAt time.Time           `bson:"created_at"`
}

type referenceDrugDoc struct {
	Position int               `bson:"position"`
	Name     string            `bson:"name"`
	Metadata map[string]string `bson:"metadata,omitempty"`
}

type metaDoc struct {
	Id      string `bson:"_id"`
	Version int    `bson:"version"`
}
