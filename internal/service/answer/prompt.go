package answer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/w-h-a/medimate/memory"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

const (
	DefaultSystemPrompt = "You are MediMate, a careful assistant that explains a patient's prescription. Answer using only the prescription context below. If the context does not contain the answer, say so and suggest asking a doctor or pharmacist. Never invent dosages."

	// NoContextMarker stands in for the context block when retrieval found
	// nothing for the prescription.
	NoContextMarker = "No context available for this prescription."

	// FailedAnswer is the reply when the pipeline could not produce an
	// answer.
	FailedAnswer = "Sorry, I could not answer that right now. Please try again."
)

func buildPrompt(systemPrompt string, matches []vectorstore.Match, history []memory.Turn, question string) string {
	var sb bytes.Buffer
	sb.WriteString(systemPrompt)

	sb.WriteString("\n\nPrescription context:\n")
	if len(matches) == 0 {
		sb.WriteString(NoContextMarker)
		sb.WriteString("\n")
	} else {
		for _, m := range matches {
			sb.WriteString(strings.TrimSpace(m.Content))
			sb.WriteString("\n")
		}
	}

	if len(history) > 0 {
		sb.WriteString("\nConversation history:\n")
		for _, turn := range history {
			sb.WriteString(fmt.Sprintf("[%s]: %s\n", turn.Role, strings.TrimSpace(turn.Content)))
		}
	}

	sb.WriteString("\nCurrent question:\n")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nCompose the best possible answer.\n")

	return sb.String()
}
