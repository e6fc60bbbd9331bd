package metrics

import (
	"fmt"
	"sort"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

// SymptomCounts holds the per-category counts of one symptom.
type SymptomCounts struct {
	Symptom           string `json:"symptom"`
	Valid             int    `json:"VALID"`
	Invalid           int    `json:"INVALID"`
	ValidateExtractor int    `json:"VALIDATE_EXTRACTOR"`
	ValidateMarker    int    `json:"VALIDATE_MARKER"`
	Undefined         int    `json:"UNDEFINED"`
	Unscored          int    `json:"UNSCORED"`
}

// Count returns the count of a category.
func (c SymptomCounts) Count(cat Category) int {
	switch cat {
	case Valid:
		return c.Valid
	case Invalid:
		return c.Invalid
	case ValidateExtractor:
		return c.ValidateExtractor
	case ValidateMarker:
		return c.ValidateMarker
	case Undefined:
		return c.Undefined
	default:
		return 0
	}
}

// Scored returns the number of pairs in the scored categories.
func (c SymptomCounts) Scored() int {
	return c.Valid + c.Invalid + c.ValidateExtractor + c.ValidateMarker
}

func (c *SymptomCounts) add(cat Category) {
	switch cat {
	case Valid:
		c.Valid++
	case Invalid:
		c.Invalid++
	case ValidateExtractor:
		c.ValidateExtractor++
	case ValidateMarker:
		c.ValidateMarker++
	case Undefined:
		c.Undefined++
	}
}

// Tally accumulates status pairs for a fixed, ordered set of symptoms.
type Tally struct {
	order  []string
	counts map[string]*SymptomCounts
	cases  int
}

// NewTally creates a tally over symptoms.
func NewTally(symptoms []string) *Tally {
	t := &Tally{
		order:  append([]string(nil), symptoms...),
		counts: make(map[string]*SymptomCounts, len(symptoms)),
	}
	for _, s := range symptoms {
		t.counts[s] = &SymptomCounts{Symptom: s}
	}
	return t
}

// AddCase records one labelled case. truth and extracted are aligned with
// the tally's symptom order.
func (t *Tally) AddCase(truth, extracted []domain.SymptomStatus) error {
	if len(truth) != len(t.order) || len(extracted) != len(t.order) {
		return fmt.Errorf("case has %d truth and %d extracted statuses, expected %d", len(truth), len(extracted), len(t.order))
	}
	for i, s := range t.order {
		t.add(s, truth[i], extracted[i])
	}
	t.cases++
	return nil
}

// AddRecords records one case given as two records over the same catalog.
func (t *Tally) AddRecords(truth, extracted *anamnesis.Record) error {
	if truth == nil || extracted == nil || !truth.Catalog().Compatible(extracted.Catalog()) {
		return &domain.TypeMismatchError{Expected: "records over the same catalog", Actual: "incompatible records"}
	}
	return t.AddCase(truth.Statuses(), extracted.Statuses())
}

func (t *Tally) add(symptom string, truth, extracted domain.SymptomStatus) {
	c := t.counts[symptom]
	if cat, ok := Classify(truth, extracted); ok {
		c.add(cat)
		return
	}
	c.Unscored++
}

// Cases returns the number of cases recorded.
func (t *Tally) Cases() int {
	return t.cases
}

// Report summarises a tally.
type Report struct {
	Cases    int                  `json:"cases"`
	Symptoms []SymptomCounts      `json:"symptoms"`
	Excluded []string             `json:"excluded,omitempty"`
	Rates    map[Category]float64 `json:"rates"`
}

// Report builds the summary. Symptoms with no information on either side in
// every case are excluded. The remaining symptoms are sorted by INVALID
// count, then by name, and each category's rate is its share of all scored
// pairs of the remaining symptoms.
func (t *Tally) Report() *Report {
	r := &Report{Cases: t.cases, Rates: make(map[Category]float64, len(ScoredCategories))}

	for _, s := range t.order {
		c := *t.counts[s]
		if c.Undefined == t.cases {
			r.Excluded = append(r.Excluded, s)
			continue
		}
		r.Symptoms = append(r.Symptoms, c)
	}

	sort.SliceStable(r.Symptoms, func(i, j int) bool {
		if r.Symptoms[i].Invalid != r.Symptoms[j].Invalid {
			return r.Symptoms[i].Invalid < r.Symptoms[j].Invalid
		}
		return r.Symptoms[i].Symptom < r.Symptoms[j].Symptom
	})

	total := 0
	for _, c := range r.Symptoms {
		total += c.Scored()
	}
	for _, cat := range ScoredCategories {
		if total == 0 {
			r.Rates[cat] = 0
			continue
		}
		sum := 0
		for _, c := range r.Symptoms {
			sum += c.Count(cat)
		}
		r.Rates[cat] = float64(sum) / float64(total)
	}
	return r
}

// Rate returns the rate of a category for a single symptom of the report.
func (r *Report) Rate(symptom string, cat Category) (float64, bool) {
	for _, c := range r.Symptoms {
		if c.Symptom != symptom {
			continue
		}
		if c.Scored() == 0 {
			return 0, true
		}
		return float64(c.Count(cat)) / float64(c.Scored()), true
	}
	return 0, false
}

// Evaluate scores extracted records against truth records.
func Evaluate(symptoms []string, truth, extracted []*anamnesis.Record) (*Report, error) {
	if len(truth) != len(extracted) {
		return nil, fmt.Errorf("got %d truth records and %d extracted records", len(truth), len(extracted))
	}
	t := NewTally(symptoms)
	for i := range truth {
		if err := t.AddRecords(truth[i], extracted[i]); err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
	}
	return t.Report(), nil
}
