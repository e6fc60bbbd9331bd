package textanalysis

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Termset holds the negation cues used by the rule engine.
//
// Pseudo terms look like negations but are not; negation cues overlapping
// them are ignored. Preceding terms negate mentions after them and following
// terms negate mentions before them, both within a scope. Termination and
// affirmation terms close a scope.
type Termset struct {
	Language    string   `yaml:"language"`
	Pseudo      []string `yaml:"pseudo"`
	Preceding   []string `yaml:"preceding"`
	Following   []string `yaml:"following"`
	Termination []string `yaml:"termination"`
	Affirmation []string `yaml:"affirmation"`
}

// LoadTermset parses a YAML termset.
func LoadTermset(r io.Reader) (*Termset, error) {
	var ts Termset
	if err := yaml.NewDecoder(r).Decode(&ts); err != nil {
		return nil, fmt.Errorf("failed to parse termset: %w", err)
	}
	if len(ts.Preceding) == 0 && len(ts.Following) == 0 {
		return nil, fmt.Errorf("termset defines no negation terms")
	}
	return &ts, nil
}

// LoadTermsetFile loads a termset from disk.
func LoadTermsetFile(path string) (*Termset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open termset %s: %w", path, err)
	}
	defer f.Close()
	return LoadTermset(f)
}

// DefaultTermset returns the embedded Russian termset.
func DefaultTermset() (*Termset, error) {
	f, err := resources.Open("data/termset_ru.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded termset: %w", err)
	}
	defer f.Close()
	return LoadTermset(f)
}

type compiledTermset struct {
	pseudo      [][]string
	preceding   [][]string
	following   [][]string
	boundaries  [][]string
	affirmation [][]string
}

func (ts *Termset) compile() compiledTermset {
	compileAll := func(groups ...[]string) [][]string {
		var out [][]string
		for _, terms := range groups {
			for _, term := range terms {
				if words := phraseWords(term); len(words) > 0 {
					out = append(out, words)
				}
			}
		}
		return out
	}
	return compiledTermset{
		pseudo:      compileAll(ts.Pseudo),
		preceding:   compileAll(ts.Preceding),
		following:   compileAll(ts.Following),
		boundaries:  compileAll(ts.Termination, ts.Affirmation),
		affirmation: compileAll(ts.Affirmation),
	}
}
