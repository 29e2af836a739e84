package answer

import (
	"github.com/w-h-a/medimate/memory"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

type Request struct {
	UserId         string `json:"user_id"`
	PrescriptionId string `json:"prescription_id"`
	SessionId      string `json:"session_id"`
	Question       string `json:"question"`
}

type Reply struct {
	SessionId      string              `json:"session_id"`
	PrescriptionId string              `json:"prescription_id"`
	Answer         string              `json:"answer"`
	Sources        []vectorstore.Match `json:"sources,omitempty"`
	Failed         bool                `json:"failed"`
}

type State struct {
	Question       string
	PrescriptionId string
	SessionId      string
	Context        []vectorstore.Match
	History        []memory.Turn
	Prompt         string
	Answer         string
	Generated      bool
	Failed         bool
	Err            error
}
