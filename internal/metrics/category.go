// Package metrics scores an extraction engine against human-labelled ground
// truth, symptom by symptom.
package metrics

import "github.com/anamnesis-symptom-engine/internal/domain"

// Category classifies one (truth, extracted) status pair.
type Category string

const (
	// Valid: both sides agree on a definite status.
	Valid Category = "VALID"
	// Invalid: the sides hold opposite definite statuses.
	Invalid Category = "INVALID"
	// ValidateExtractor: the labeller saw a status the extractor missed.
	ValidateExtractor Category = "VALIDATE_EXTRACTOR"
	// ValidateMarker: the extractor found a status the labeller did not mark.
	ValidateMarker Category = "VALIDATE_MARKER"
	// Undefined: neither side has information.
	Undefined Category = "UNDEFINED"
)

// Categories lists every category in table order.
var Categories = []Category{Valid, Invalid, ValidateExtractor, ValidateMarker, Undefined}

// ScoredCategories are the categories rates are computed over.
var ScoredCategories = []Category{Valid, Invalid, ValidateExtractor, ValidateMarker}

// Classify returns the category of a status pair. Pairs involving CONFUSED
// on either side belong to no category and report false.
func Classify(truth, extracted domain.SymptomStatus) (Category, bool) {
	switch {
	case truth.IsDefinite() && extracted == truth:
		return Valid, true
	case truth.IsDefinite() && extracted.IsDefinite():
		return Invalid, true
	case truth.IsDefinite() && extracted == domain.NO_INFO:
		return ValidateExtractor, true
	case truth == domain.NO_INFO && extracted.IsDefinite():
		return ValidateMarker, true
	case truth == domain.NO_INFO && extracted == domain.NO_INFO:
		return Undefined, true
	default:
		return "", false
	}
}
