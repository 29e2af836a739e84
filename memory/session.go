package memory

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Session struct {
	Id             string    `json:"id"`
	UserId         string    `json:"user_id"`
	PrescriptionId string    `json:"prescription_id"`
	Title          string    `json:"title"`
	Filename       string    `json:"filename"`
	Details        string    `json:"details"`
	CreatedAt      time.Time `json:"created_at"`
}

type Turn struct {
	SessionId string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type PrescriptionRef struct {
	Id    string `json:"id"`
	Title string `json:"title"`
}
