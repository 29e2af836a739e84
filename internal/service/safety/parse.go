package safety

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/util/fence"
)

var (
	errModelReported = errors.New("model reported an error")
	errEmptyResult   = errors.New("model returned no classification")
)

func parseReport(raw string) (memory.SafetyReport, error) {
	var doc struct {
		OTC     []memory.Verdict `json:"otc_medicines"`
		Consult []memory.Verdict `json:"consult_medicines"`
		Error   string           `json:"error"`
	}

	if err := json.Unmarshal([]byte(fence.Strip(raw)), &doc); err != nil {
		return memory.SafetyReport{}, fmt.Errorf("invalid classification: %w", err)
	}

	if len(strings.TrimSpace(doc.Error)) > 0 {
		return memory.SafetyReport{}, fmt.Errorf("%w: %s", errModelReported, doc.Error)
	}

	report := memory.SafetyReport{
		OTC:     clean(doc.OTC),
		Consult: clean(doc.Consult),
	}

	if report.Empty() {
		return memory.SafetyReport{}, errEmptyResult
	}

	return report, nil
}

func clean(verdicts []memory.Verdict) []memory.Verdict {
	out := make([]memory.Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		v.Name = strings.TrimSpace(v.Name)
		v.Reason = strings.TrimSpace(v.Reason)
		if len(v.Name) == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}
