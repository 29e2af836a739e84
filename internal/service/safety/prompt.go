package safety

import (
	"bytes"
	"fmt"
	"strings"

	vectorstore "github.com/w-h-a/medimate/vector_store"
)

const classifyInstructions = `You are a pharmacist screening a prescription. For every medicine below decide whether it can be bought over the counter without a prescription or whether the patient should consult a doctor first.

Reply with one JSON object and nothing else:
{"otc_medicines": [{"name": "...", "reason": "..."}], "consult_medicines": [{"name": "...", "reason": "..."}]}

Every medicine must appear in exactly one list with a short reason. If you cannot classify the list, reply {"error": "<why>"}.`

type reference struct {
	name    string
	matches []vectorstore.Match
}

func buildPrompt(medicines []string, refs []reference) string {
	var sb bytes.Buffer
	sb.WriteString(classifyInstructions)

	sb.WriteString("\n\nMedicines:\n")
	for _, med := range medicines {
		sb.WriteString(strings.TrimSpace(med))
		sb.WriteString("\n")
	}

	var grounded bool
	for _, ref := range refs {
		if len(ref.matches) > 0 {
			grounded = true
			break
		}
	}

	if grounded {
		sb.WriteString("\nKnown over-the-counter reference entries:\n")
		for _, ref := range refs {
			if len(ref.matches) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("%s:\n", ref.name))
			for _, m := range ref.matches {
				sb.WriteString(fmt.Sprintf("  - %s (similarity %.2f)\n", m.Content, m.Score))
			}
		}
		sb.WriteString("Reference entries are hints. A medicine missing from them may still be OTC.\n")
	}

	return sb.String()
}
