package memory

type Verdict struct {
	Name   string `json:"name" bson:"name"`
	Reason string `json:"reason" bson:"reason"`
}

// SafetyReport splits a prescription's medicines into those sold over the
// counter and those that need a doctor.
type SafetyReport struct {
	OTC     []Verdict `json:"otc_medicines" bson:"otc_medicines"`
	Consult []Verdict `json:"consult_medicines" bson:"consult_medicines"`
}

// Normalize replaces nil lists with empty ones so the report always
// serializes as two arrays.
func (r SafetyReport) Normalize() SafetyReport {
	if r.OTC == nil {
		r.OTC = []Verdict{}
	}
	if r.Consult == nil {
		r.Consult = []Verdict{}
	}
	return r
}

func (r SafetyReport) Empty() bool {
	return len(r.OTC) == 0 && len(r.Consult) == 0
}

type ReferenceDrug struct {
	Name     string            `json:"name" bson:"name"`
	Metadata map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Category is the drug's reference type, "General" when unknown.
func (d ReferenceDrug) Category() string {
	if t := d.Metadata["type"]; len(t) > 0 {
		return t
	}
	return "General"
}
