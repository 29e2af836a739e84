package prescription

import (
	"fmt"
	"strings"
	"time"
)

const missing = "N/A"

type Timing struct {
	Morning     string `json:"morning" bson:"morning"`
	Afternoon   string `json:"afternoon" bson:"afternoon"`
	Night       string `json:"night" bson:"night"`
	Instruction string `json:"instruction" bson:"instruction"`
}

type Medicine struct {
	Name      string `json:"name" bson:"name"`
	Quantity  string `json:"quantity" bson:"quantity"`
	Frequency string `json:"frequency" bson:"frequency"`
	Duration  string `json:"duration" bson:"duration"`
	Timing    Timing `json:"timing" bson:"timing"`
}

// Extraction is what the ingestion collaborator returns for one document.
type Extraction struct {
	Date      string     `json:"date" bson:"date"`
	Notes     string     `json:"notes" bson:"notes"`
	Medicines []Medicine `json:"medicines" bson:"medicines"`
}

// Prescription is immutable once created. (UserId, Filename) is unique.
type Prescription struct {
	Id         string     `json:"id" bson:"prescription_id"`
	UserId     string     `json:"user_id" bson:"user_id"`
	Filename   string     `json:"filename" bson:"filename"`
	Title      string     `json:"title" bson:"title"`
	Extraction Extraction `json:"extraction" bson:"extraction"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

// Sanitize trims every field and drops medicines without a name.
func (e Extraction) Sanitize() Extraction {
	out := Extraction{
		Date:      strings.TrimSpace(e.Date),
		Notes:     strings.TrimSpace(e.Notes),
		Medicines: make([]Medicine, 0, len(e.Medicines)),
	}

	for _, med := range e.Medicines {
		med.Name = strings.TrimSpace(med.Name)
		if len(med.Name) == 0 {
			continue
		}
		med.Quantity = strings.TrimSpace(med.Quantity)
		med.Frequency = strings.TrimSpace(med.Frequency)
		med.Duration = strings.TrimSpace(med.Duration)
		med.Timing.Morning = strings.TrimSpace(med.Timing.Morning)
		med.Timing.Afternoon = strings.TrimSpace(med.Timing.Afternoon)
		med.Timing.Night = strings.TrimSpace(med.Timing.Night)
		med.Timing.Instruction = strings.TrimSpace(med.Timing.Instruction)
		out.Medicines = append(out.Medicines, med)
	}

	return out
}

func (e Extraction) Names() []string {
	names := make([]string, 0, len(e.Medicines))
	for _, med := range e.Medicines {
		names = append(names, med.Name)
	}
	return names
}

// Line renders one medicine as a single summary line.
func (m Medicine) Line() string {
	return fmt.Sprintf(
		"- %s (Qty: %s): Morning: %s, Afternoon: %s, Night: %s, Instruction: %s, Freq: %s, Duration: %s",
		orMissing(m.Name),
		orMissing(m.Quantity),
		orMissing(m.Timing.Morning),
		orMissing(m.Timing.Afternoon),
		orMissing(m.Timing.Night),
		orMissing(m.Timing.Instruction),
		orMissing(m.Frequency),
		orMissing(m.Duration),
	)
}

// Summary is the human readable medicine list stored with the session.
func (e Extraction) Summary() string {
	lines := make([]string, 0, len(e.Medicines))
	for _, med := range e.Medicines {
		lines = append(lines, med.Line())
	}
	return strings.Join(lines, "\n")
}

// Document is the text block that gets embedded for retrieval.
func (e Extraction) Document() string {
	return fmt.Sprintf("Date: %s\n\nMedicines:\n%s\n\nNotes: %s", orMissing(e.Date), e.Summary(), orMissing(e.Notes))
}

func (e Extraction) Title(filename string) string {
	names := e.Names()
	if len(names) == 0 {
		return "Rx: " + filename
	}

	if len(names) > 2 {
		return "Rx: " + strings.Join(names[:2], ", ") + "..."
	}

	return "Rx: " + strings.Join(names, ", ")
}

// ParseSummary splits a stored summary back into its medicine lines.
func ParseSummary(summary string) []string {
	var lines []string
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// LineName recovers the medicine name from a line produced by Medicine.Line.
func LineName(line string) string {
	line = strings.TrimPrefix(strings.TrimSpace(line), "- ")
	if idx := strings.Index(line, " (Qty:"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

func orMissing(s string) string {
	if len(s) == 0 {
		return missing
	}
	return s
}
