// Package anamnesis holds the per-patient symptom record: one status for every
// symptom of a catalog, updated only through the status combination rules.
package anamnesis

import (
	"encoding/json"
	"fmt"

	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

// Record is the accumulated knowledge about every catalog symptom for one
// patient. A Record is not safe for concurrent mutation; each belongs to a
// single owner.
type Record struct {
	catalog  *catalog.Catalog
	statuses []domain.SymptomStatus
}

// Entry is one symptom and its status, used in ordered views of a record.
type Entry struct {
	Symptom string               `json:"symptom"`
	Status  domain.SymptomStatus `json:"status"`
}

// New creates a record with every catalog symptom at NO_INFO.
func New(c *catalog.Catalog) *Record {
	r := &Record{catalog: c, statuses: make([]domain.SymptomStatus, c.Len())}
	r.Reset()
	return r
}

// FromStatuses builds a record holding the given statuses. Statuses are
// reached by replaying mentions: YES as an affirmed mention, NO as a negated
// one and CONFUSED as both. Unknown symptom names are ignored.
func FromStatuses(c *catalog.Catalog, statuses map[string]domain.SymptomStatus) (*Record, error) {
	r := New(c)
	for _, name := range c.Names() {
		status, ok := statuses[name]
		if !ok {
			continue
		}
		switch status {
		case domain.YES:
			r.UpdateFromEntity(name, false)
		case domain.NO:
			r.UpdateFromEntity(name, true)
		case domain.CONFUSED:
			r.UpdateFromEntity(name, false)
			r.UpdateFromEntity(name, true)
		case domain.NO_INFO:
		default:
			return nil, fmt.Errorf("symptom %q: %w: %d", name, domain.ErrInvalidStatus, int(status))
		}
	}
	return r, nil
}

// Catalog returns the catalog the record was built over.
func (r *Record) Catalog() *catalog.Catalog {
	return r.catalog
}

// UpdateFromEntity folds one extracted mention into the record. Names that
// are not in the catalog are ignored; the return value reports whether the
// name was known.
func (r *Record) UpdateFromEntity(name string, negated bool) bool {
	i, ok := r.catalog.Index(name)
	if !ok {
		return false
	}
	r.statuses[i] = domain.CombineEntity(r.statuses[i], negated)
	return true
}

// MergeFrom combines a newer record into r, symptom by symptom, and returns
// r. Merging is order dependent: r is the older record.
func (r *Record) MergeFrom(other *Record) (*Record, error) {
	if other == nil {
		return nil, &domain.TypeMismatchError{Expected: r.catalog.String(), Actual: "nil record"}
	}
	if !r.catalog.Compatible(other.catalog) {
		return nil, &domain.TypeMismatchError{Expected: r.catalog.String(), Actual: other.catalog.String()}
	}
	for i := range r.statuses {
		r.statuses[i] = domain.CombineRecords(r.statuses[i], other.statuses[i])
	}
	return r, nil
}

// Status returns the status of a symptom.
func (r *Record) Status(name string) (domain.SymptomStatus, bool) {
	i, ok := r.catalog.Index(name)
	if !ok {
		return 0, false
	}
	return r.statuses[i], true
}

// Statuses returns the statuses in catalog order.
func (r *Record) Statuses() []domain.SymptomStatus {
	return append([]domain.SymptomStatus(nil), r.statuses...)
}

// Vector returns the numeric status codes in catalog order.
func (r *Record) Vector() []int {
	out := make([]int, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.Code()
	}
	return out
}

// Entries returns symptom/status pairs in catalog order.
func (r *Record) Entries() []Entry {
	names := r.catalog.Names()
	out := make([]Entry, len(names))
	for i, name := range names {
		out[i] = Entry{Symptom: name, Status: r.statuses[i]}
	}
	return out
}

// Map returns the statuses keyed by symptom name.
func (r *Record) Map() map[string]domain.SymptomStatus {
	names := r.catalog.Names()
	out := make(map[string]domain.SymptomStatus, len(names))
	for i, name := range names {
		out[name] = r.statuses[i]
	}
	return out
}

// WithStatus returns the names of the symptoms currently at status, in
// catalog order.
func (r *Record) WithStatus(status domain.SymptomStatus) []string {
	var out []string
	names := r.catalog.Names()
	for i, s := range r.statuses {
		if s == status {
			out = append(out, names[i])
		}
	}
	return out
}

// Reset sets every symptom back to NO_INFO.
func (r *Record) Reset() {
	for i := range r.statuses {
		r.statuses[i] = domain.NO_INFO
	}
}

// Len returns the number of symptoms in the record.
func (r *Record) Len() int {
	return len(r.statuses)
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	return &Record{catalog: r.catalog, statuses: r.Statuses()}
}

// MarshalJSON encodes the record as an ordered list of entries.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Entries())
}

// Decode parses a JSON object of symptom name to status name into a record.
func Decode(c *catalog.Catalog, data []byte) (*Record, error) {
	var statuses map[string]domain.SymptomStatus
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return FromStatuses(c, statuses)
}
