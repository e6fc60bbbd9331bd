package domain

import "strings"

// Symptom is a named clinical symptom together with the lemma patterns that
// identify it in text. Two symptoms are the same symptom when their names
// match.
type Symptom struct {
	Name     string     `json:"name"`
	Patterns [][]string `json:"patterns"`
}

// NewSymptom copies the given patterns so the result shares no state with
// the caller.
func NewSymptom(name string, patterns [][]string) Symptom {
	return Symptom{Name: name, Patterns: copyPatterns(patterns)}
}

// Equal compares symptoms by name.
func (s Symptom) Equal(other Symptom) bool {
	return s.Name == other.Name
}

// Clone returns a deep copy of the symptom.
func (s Symptom) Clone() Symptom {
	return NewSymptom(s.Name, s.Patterns)
}

// ColumnName is the symptom name with spaces replaced by underscores, used
// in tabular exports.
func (s Symptom) ColumnName() string {
	return ColumnName(s.Name)
}

// ColumnName converts a symptom name to its tabular form.
func ColumnName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

func copyPatterns(patterns [][]string) [][]string {
	out := make([][]string, len(patterns))
	for i, p := range patterns {
		out[i] = append([]string(nil), p...)
	}
	return out
}
