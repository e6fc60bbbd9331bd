// Package explain turns a symptom record and a disease prediction into a
// short explanation for the patient.
package explain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

// ErrNoClassifier is returned by Explain when no classifier is configured.
var ErrNoClassifier = errors.New("no classifier configured")

// Prediction is the most probable disease for a symptom vector.
type Prediction struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
}

// Validate checks the prediction is usable in an explanation.
func (p Prediction) Validate() error {
	if strings.TrimSpace(p.Disease) == "" {
		return &domain.ValidationError{Field: "disease", Message: "disease is required"}
	}
	if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
		return &domain.ValidationError{Field: "probability", Message: "probability must be within [0, 1]"}
	}
	return nil
}

// Classifier predicts a disease from the numeric encoding of a record.
type Classifier interface {
	Predict(ctx context.Context, vector []int) (Prediction, error)
}

// Summary groups the symptoms of a record by status, in catalog order.
type Summary struct {
	Present  []string `json:"present"`
	Absent   []string `json:"absent"`
	Confused []string `json:"confused"`
}

// Summarize builds the summary of a record.
func Summarize(r *anamnesis.Record) Summary {
	return Summary{
		Present:  nonNil(r.WithStatus(domain.YES)),
		Absent:   nonNil(r.WithStatus(domain.NO)),
		Confused: nonNil(r.WithStatus(domain.CONFUSED)),
	}
}

// Explanation is the rendered text with the data it was built from.
type Explanation struct {
	Prediction Prediction `json:"prediction"`
	Summary    Summary    `json:"summary"`
	Text       string     `json:"text"`
}

// Explainer renders explanations, asking a classifier for the prediction
// when one is configured.
type Explainer struct {
	classifier Classifier
	separator  string
}

// NewExplainer creates an explainer. classifier may be nil when callers
// always supply the prediction themselves.
func NewExplainer(classifier Classifier) *Explainer {
	return &Explainer{classifier: classifier, separator: ", "}
}

// Explain predicts the disease for r and explains it.
func (e *Explainer) Explain(ctx context.Context, r *anamnesis.Record) (*Explanation, error) {
	if e.classifier == nil {
		return nil, ErrNoClassifier
	}
	if r == nil {
		return nil, &domain.ValidationError{Field: "record", Message: "record is required"}
	}
	prediction, err := e.classifier.Predict(ctx, r.Vector())
	if err != nil {
		return nil, fmt.Errorf("classifier failed: %w", err)
	}
	return e.ExplainPrediction(r, prediction)
}

// ExplainPrediction explains a prediction made elsewhere.
func (e *Explainer) ExplainPrediction(r *anamnesis.Record, p Prediction) (*Explanation, error) {
	if r == nil {
		return nil, &domain.ValidationError{Field: "record", Message: "record is required"}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	summary := Summarize(r)
	text := fmt.Sprintf(
		"Наблюдается %s с вероятностью %d%%.\n"+
			"Это потому что у вас наблюдаются следующие симптомы: %s\n"+
			"И отрицаются следующие: %s",
		p.Disease,
		int(math.Round(p.Probability*100)),
		strings.Join(summary.Present, e.separator),
		strings.Join(summary.Absent, e.separator),
	)
	return &Explanation{Prediction: p, Summary: summary, Text: text}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
