// Package catalog loads the symptom catalog: the fixed, ordered universe of
// symptoms a record can describe, together with the lemma patterns used to
// find them in text.
package catalog

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anamnesis-symptom-engine/internal/domain"
)

//go:embed data/symptoms.json
var defaultData embed.FS

const (
	defaultDataPath = "data/symptoms.json"
	lemmaKey        = "LEMMA"
)

// PatternEntry pairs one lemma pattern with the name of the symptom it
// identifies.
type PatternEntry struct {
	Pattern []string
	Symptom string
}

// Catalog is an immutable, ordered set of symptoms.
type Catalog struct {
	version  string
	source   string
	symptoms []domain.Symptom
	index    map[string]int
	patterns []PatternEntry
}

type fileFormat struct {
	Version  string      `json:"version"`
	Symptoms []fileEntry `json:"symptoms"`
}

type fileEntry struct {
	IDName   *string               `json:"id_name"`
	Patterns [][]map[string]string `json:"patterns"`
}

// New builds a catalog from already parsed symptoms. Order is preserved.
func New(version string, symptoms []domain.Symptom) (*Catalog, error) {
	c := &Catalog{
		version:  version,
		source:   "memory",
		symptoms: make([]domain.Symptom, 0, len(symptoms)),
		index:    make(map[string]int, len(symptoms)),
	}
	for _, s := range symptoms {
		if err := c.add(s); err != nil {
			return nil, domain.NewCatalogLoadError(c.source, err.Error(), nil)
		}
	}
	if len(c.symptoms) == 0 {
		return nil, domain.NewCatalogLoadError(c.source, "catalog defines no symptoms", nil)
	}
	return c, nil
}

// Load parses a catalog definition. The document is either an object with a
// "symptoms" list or a bare list of entries.
func Load(r io.Reader, source string) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.NewCatalogLoadError(source, "cannot read definition", err)
	}

	var doc fileFormat
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &doc.Symptoms)
	} else {
		err = json.Unmarshal(trimmed, &doc)
	}
	if err != nil {
		return nil, domain.NewCatalogLoadError(source, "invalid JSON", err)
	}

	symptoms := make([]domain.Symptom, 0, len(doc.Symptoms))
	for i, entry := range doc.Symptoms {
		s, err := entry.toSymptom()
		if err != nil {
			return nil, domain.NewCatalogLoadError(source, fmt.Sprintf("entry %d: %s", i, err), nil)
		}
		symptoms = append(symptoms, s)
	}

	c, err := New(doc.Version, symptoms)
	if err != nil {
		var le *domain.CatalogLoadError
		if errors.As(err, &le) {
			le.Source = source
		}
		return nil, err
	}
	c.source = source
	return c, nil
}

// LoadFile loads a catalog definition from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewCatalogLoadError(path, "cannot open file", err)
	}
	defer f.Close()
	return Load(f, path)
}

// LoadDefault loads the catalog shipped with the binary.
func LoadDefault() (*Catalog, error) {
	f, err := defaultData.Open(defaultDataPath)
	if err != nil {
		return nil, domain.NewCatalogLoadError("embedded:"+defaultDataPath, "cannot open embedded definition", err)
	}
	defer f.Close()
	return Load(f, "embedded:"+defaultDataPath)
}

func (e fileEntry) toSymptom() (domain.Symptom, error) {
	if e.IDName == nil || strings.TrimSpace(*e.IDName) == "" {
		return domain.Symptom{}, fmt.Errorf("missing id_name")
	}
	if len(e.Patterns) == 0 {
		return domain.Symptom{}, fmt.Errorf("symptom %q has no patterns", *e.IDName)
	}

	patterns := make([][]string, 0, len(e.Patterns))
	for pi, p := range e.Patterns {
		if len(p) == 0 {
			return domain.Symptom{}, fmt.Errorf("symptom %q pattern %d is empty", *e.IDName, pi)
		}
		lemmas := make([]string, 0, len(p))
		for _, token := range p {
			lemma, ok := token[lemmaKey]
			if !ok || lemma == "" {
				return domain.Symptom{}, fmt.Errorf("symptom %q pattern %d has a token without %s", *e.IDName, pi, lemmaKey)
			}
			lemmas = append(lemmas, lemma)
		}
		patterns = append(patterns, lemmas)
	}
	return domain.Symptom{Name: *e.IDName, Patterns: patterns}, nil
}

func (c *Catalog) add(s domain.Symptom) error {
	if s.Name == "" {
		return fmt.Errorf("symptom without name")
	}
	if _, dup := c.index[s.Name]; dup {
		return fmt.Errorf("duplicate symptom %q", s.Name)
	}
	if len(s.Patterns) == 0 {
		return fmt.Errorf("symptom %q has no patterns", s.Name)
	}
	for pi, p := range s.Patterns {
		if len(p) == 0 {
			return fmt.Errorf("symptom %q pattern %d is empty", s.Name, pi)
		}
		for _, lemma := range p {
			if strings.TrimSpace(lemma) == "" {
				return fmt.Errorf("symptom %q pattern %d has an empty lemma", s.Name, pi)
			}
		}
	}
	s = s.Clone()
	c.index[s.Name] = len(c.symptoms)
	c.symptoms = append(c.symptoms, s)
	for _, p := range s.Patterns {
		c.patterns = append(c.patterns, PatternEntry{Pattern: append([]string(nil), p...), Symptom: s.Name})
	}
	return nil
}

// Version returns the version string declared by the definition.
func (c *Catalog) Version() string {
	return c.version
}

// Source describes where the catalog was loaded from.
func (c *Catalog) Source() string {
	return c.source
}

// Len returns the number of symptoms.
func (c *Catalog) Len() int {
	return len(c.symptoms)
}

// Symptoms returns all symptoms in catalog order.
func (c *Catalog) Symptoms() []domain.Symptom {
	out := make([]domain.Symptom, len(c.symptoms))
	for i, s := range c.symptoms {
		out[i] = s.Clone()
	}
	return out
}

// Names returns the symptom names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.symptoms))
	for i, s := range c.symptoms {
		out[i] = s.Name
	}
	return out
}

// Get looks a symptom up by name.
func (c *Catalog) Get(name string) (domain.Symptom, bool) {
	i, ok := c.index[name]
	if !ok {
		return domain.Symptom{}, false
	}
	return c.symptoms[i].Clone(), true
}

// Index returns the position of a symptom in catalog order.
func (c *Catalog) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Patterns returns every (pattern, symptom) pair, flattened in catalog order.
func (c *Catalog) Patterns() []PatternEntry {
	out := make([]PatternEntry, len(c.patterns))
	for i, p := range c.patterns {
		out[i] = PatternEntry{Pattern: append([]string(nil), p.Pattern...), Symptom: p.Symptom}
	}
	return out
}

// Compatible reports whether two catalogs describe the same ordered symptom
// universe.
func (c *Catalog) Compatible(other *Catalog) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil || len(c.symptoms) != len(other.symptoms) {
		return false
	}
	for i := range c.symptoms {
		if c.symptoms[i].Name != other.symptoms[i].Name {
			return false
		}
	}
	return true
}

// Fingerprint identifies the catalog content: its version, its symptoms in
// order and every pattern. Catalogs sharing a version but differing in
// patterns get different fingerprints.
func (c *Catalog) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(c.version))
	for _, s := range c.symptoms {
		h.Write([]byte{0})
		h.Write([]byte(s.Name))
		for _, p := range s.Patterns {
			h.Write([]byte{1})
			h.Write([]byte(strings.Join(p, "\x02")))
		}
	}
	return c.version + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// String describes the catalog for logs and error messages.
func (c *Catalog) String() string {
	if c == nil {
		return "<nil catalog>"
	}
	return fmt.Sprintf("catalog(%s, %d symptoms)", c.version, len(c.symptoms))
}
