package textanalysis

import (
	"embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var resources embed.FS

// Lexicon maps inflected word forms to their lemma.
type Lexicon struct {
	Language string
	forms    map[string]string
}

type lexiconFile struct {
	Language string              `yaml:"language"`
	Lemmas   map[string][]string `yaml:"lemmas"`
}

// LoadLexicon parses a YAML lexicon of the form
//
//	lemmas:
//	  голова: [голова, головы, голову]
//
// A form listed under two different lemmas is rejected.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}

	lex := &Lexicon{Language: f.Language, forms: make(map[string]string)}
	for lemma, forms := range f.Lemmas {
		lemma = normalize(lemma)
		if err := lex.add(lemma, lemma); err != nil {
			return nil, err
		}
		for _, form := range forms {
			if err := lex.add(normalize(form), lemma); err != nil {
				return nil, err
			}
		}
	}
	return lex, nil
}

// LoadLexiconFile loads a lexicon from disk.
func LoadLexiconFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon %s: %w", path, err)
	}
	defer f.Close()
	return LoadLexicon(f)
}

// DefaultLexicon returns the embedded Russian lexicon.
func DefaultLexicon() (*Lexicon, error) {
	f, err := resources.Open("data/lexicon_ru.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded lexicon: %w", err)
	}
	defer f.Close()
	return LoadLexicon(f)
}

func (l *Lexicon) add(form, lemma string) error {
	if existing, ok := l.forms[form]; ok && existing != lemma {
		return fmt.Errorf("lexicon form %q belongs to both %q and %q", form, existing, lemma)
	}
	l.forms[form] = lemma
	return nil
}

// Lemma returns the lemma of a normalized word, or the word itself when the
// lexicon does not know it.
func (l *Lexicon) Lemma(word string) string {
	if l == nil {
		return word
	}
	if lemma, ok := l.forms[word]; ok {
		return lemma
	}
	return word
}

// Size returns the number of known forms.
func (l *Lexicon) Size() int {
	if l == nil {
		return 0
	}
	return len(l.forms)
}
