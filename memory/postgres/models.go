package postgres

import (
	"time"

	"gorm.io/datatypes"
)

type prescriptionModel struct {
	Id         string         `gorm:"type:varchar(64);primaryKey"`
	UserId     string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_prescriptions_user_filename,priority:1"`
	Filename   string         `gorm:"type:text;not null;uniqueIndex:ux_prescriptions_user_filename,priority:2"`
	Title      string         `gorm:"type:text;not null"`
	Extraction datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt  time.Time
}

func (prescriptionModel) TableName() string { return "prescriptions" }

type sessionModel struct {
	Id             string    `gorm:"type:varchar(64);primaryKey"`
	UserId         string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_sessions_user_prescription,priority:1;index:idx_sessions_user_created,priority:1"`
	PrescriptionId string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_sessions_user_prescription,priority:2"`
	Title          string    `gorm:"type:text;not null"`
	Filename       string    `gorm:"type:text;not null"`
	Details        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"index:idx_sessions_user_created,priority:2"`
}

func (sessionModel) TableName() string { return "sessions" }

type turnModel struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	SessionId string    `gorm:"type:varchar(64);not null;index:idx_turns_session_seq,priority:1"`
	Role      string    `gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (turnModel) TableName() string { return "turns" }

type safetyReportModel struct {
	SessionId string         `gorm:"type:varchar(64);primaryKey"`
	Report    datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}

func (safetyReportModel) TableName() string { return "safety_reports" }

type referenceDrugModel struct {
	Position int            `gorm:"primaryKey;autoIncrement:false"`
	Name     string         `gorm:"type:text;not null"`
	Metadata datatypes.JSON `gorm:"type:jsonb"`
}

func (referenceDrugModel) TableName() string { return "reference_drugs" }

type metaModel struct {
	Key     string `gorm:"type:varchar(64);primaryKey"`
	Version int    `gorm:"not null"`
}

func (metaModel) TableName() string { return "meta" }
