package spaceweather

import (
	"time"
)

// Provenance tells how a value was obtained.
type Provenance string

const (
	ProvenanceNone      Provenance = ""
	ProvenanceObserved  Provenance = "observed"
	ProvenanceEstimated Provenance = "estimated"
	ProvenancePredicted Provenance = "predicted"
)

// ParseProvenance maps the feed's tag to a Provenance. Unknown tags map to
// ProvenanceNone.
func ParseProvenance(s string) Provenance {
	switch Provenance(s) {
	case ProvenanceObserved, ProvenanceEstimated, ProvenancePredicted:
		return Provenance(s)
	default:
		return ProvenanceNone
	}
}

// Record is one timestamped measurement of a feed.
// Records are never modified after creation; Time is the dedup key.
type Record struct {
	Time   time.Time  `json:"time"` // always UTC
	Values []float64  `json:"values,omitempty"`
	Kind   Provenance `json:"kind,omitempty"`
	Label  string     `json:"label,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// Value returns the i-th measurement, or 0 when the record has fewer values.
func (r Record) Value(i int) float64 {
	if i < 0 || i >= len(r.Values) {
		return 0
	}
	return r.Values[i]
}

func (r Record) clone() Record {
	if r.Values != nil {
		r.Values = append([]float64(nil), r.Values...)
	}
	return r
}

// Sequence is a feed history ordered by Time ascending, with unique times.
type Sequence []Record

// Last returns the most recent record.
func (s Sequence) Last() (Record, bool) {
	if len(s) == 0 {
		return Record{}, false
	}
	return s[len(s)-1].clone(), true
}

// Batch is the outcome of normalizing one payload: the records that parsed
// and the ones that were dropped.
type Batch struct {
	Records Sequence
	Dropped []*MalformedRecordError
}

// Add appends a record, or registers a drop when err is non-nil.
func (b *Batch) Add(index int, raw string, r Record, err error) {
	if err != nil {
		b.Dropped = append(b.Dropped, &MalformedRecordError{Index: index, Raw: raw, Err: err})
		return
	}
	b.Records = append(b.Records, r)
}
