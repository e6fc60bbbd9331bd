package extraction

import (
	"context"
	"strings"

	"github.com/anamnesis-symptom-engine/internal/catalog"
)

// SubstringExtractor reports every catalog symptom whose name occurs
// verbatim in the text. It never reports negation.
type SubstringExtractor struct {
	names []string
}

// NewSubstringExtractor creates a substring extractor over a catalog.
func NewSubstringExtractor(c *catalog.Catalog) *SubstringExtractor {
	return &SubstringExtractor{names: c.Names()}
}

// Extract returns evidence in catalog order.
func (s *SubstringExtractor) Extract(ctx context.Context, text string) ([]Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Evidence
	for _, name := range s.names {
		if strings.Contains(text, name) {
			out = append(out, Evidence{Symptom: name})
		}
	}
	return out, nil
}
