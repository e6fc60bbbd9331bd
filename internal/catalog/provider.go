package catalog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// LoaderFunc produces a catalog.
type LoaderFunc func() (*Catalog, error)

// Provider builds a catalog lazily, at most once, and hands the same value to
// every caller. A failed load is remembered and returned on every call.
type Provider struct {
	load   LoaderFunc
	logger *logrus.Logger

	once    sync.Once
	catalog *Catalog
	err     error
}

// NewProvider creates a provider around a loader.
func NewProvider(load LoaderFunc, logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Provider{load: load, logger: logger}
}

// NewFileProvider loads the catalog from path, or the embedded default when
// path is empty.
func NewFileProvider(path string, logger *logrus.Logger) *Provider {
	if path == "" {
		return NewProvider(LoadDefault, logger)
	}
	return NewProvider(func() (*Catalog, error) { return LoadFile(path) }, logger)
}

// Get returns the catalog, loading it on first use.
func (p *Provider) Get() (*Catalog, error) {
	p.once.Do(func() {
		p.catalog, p.err = p.load()
		if p.err != nil {
			p.logger.WithError(p.err).Error("Failed to load symptom catalog")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"source":   p.catalog.Source(),
			"version":  p.catalog.Version(),
			"symptoms": p.catalog.Len(),
		}).Info("Symptom catalog loaded")
	})
	return p.catalog, p.err
}

// MustGet returns the catalog or panics. Intended for process startup.
func (p *Provider) MustGet() *Catalog {
	c, err := p.Get()
	if err != nil {
		panic(err)
	}
	return c
}
