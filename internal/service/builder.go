package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/database"
	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/explain"
	"github.com/anamnesis-symptom-engine/internal/extraction"
	"github.com/anamnesis-symptom-engine/internal/repository"
	"github.com/anamnesis-symptom-engine/internal/store"
	"github.com/anamnesis-symptom-engine/internal/textanalysis"
)

// Components holds the service and the resources it was assembled from.
type Components struct {
	Service  *AnamnesisService
	Catalog  *catalog.Catalog
	Analyzer textanalysis.Analyzer
	Store    store.Store
	Cases    *repository.CaseRepository

	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (comp *Components) Close() error {
	var errs []error
	for i := len(comp.closers) - 1; i >= 0; i-- {
		if err := comp.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	comp.closers = nil
	return errors.Join(errs...)
}

// Build assembles the service described by cfg: catalog, text analyzer
// with its caches, extractor and storage.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*Components, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	comp := &Components{}

	c, err := catalog.NewFileProvider(cfg.Catalog.Path, logger).Get()
	if err != nil {
		return nil, err
	}
	comp.Catalog = c

	if cfg.Extraction.Strategy != extraction.StrategySubstring {
		analyzer, err := BuildAnalyzer(cfg, c, logger)
		if err != nil {
			return nil, err
		}
		comp.Analyzer = analyzer
		if cfg.Cache.Enabled {
			comp.Analyzer = comp.wrapWithCache(cfg.Cache, c, analyzer, logger)
		}
	}

	extractor, err := extraction.New(cfg.Extraction.Strategy, c, comp.Analyzer)
	if err != nil {
		comp.Close()
		return nil, err
	}

	if err := comp.openStorage(ctx, cfg, logger); err != nil {
		comp.Close()
		return nil, err
	}

	var cases CaseSource
	if comp.Cases != nil {
		cases = comp.Cases
	}
	comp.Service = NewAnamnesisService(logger, c, extractor, comp.Store, cases, explain.NewExplainer(nil), Options{
		Concurrency:    cfg.Extraction.Concurrency,
		SplitSentences: cfg.Extraction.SplitSentences,
	})

	logger.WithFields(logrus.Fields{
		"catalog_version": c.Version(),
		"symptoms":        c.Len(),
		"strategy":        cfg.Extraction.Strategy,
		"analyzer":        cfg.Analyzer.Mode,
		"storage":         cfg.Storage.Driver,
	}).Info("Anamnesis service assembled")

	return comp, nil
}

// BuildAnalyzer creates the text analyzer selected by the analyzer mode.
func BuildAnalyzer(cfg *domain.Config, c *catalog.Catalog, logger *logrus.Logger) (textanalysis.Analyzer, error) {
	switch cfg.Analyzer.Mode {
	case "remote":
		return textanalysis.NewRemoteAnalyzer(textanalysis.RemoteConfig{
			BaseURL:    cfg.Analyzer.BaseURL,
			APIKey:     cfg.Analyzer.APIKey,
			Timeout:    cfg.Analyzer.Timeout,
			RateLimit:  cfg.Analyzer.RateLimit,
			RetryCount: cfg.Analyzer.RetryCount,
			BatchSize:  cfg.Analyzer.BatchSize,
		}, logger), nil
	case "local", "":
		lexicon, err := loadLexicon(cfg.Catalog.LexiconPath)
		if err != nil {
			return nil, err
		}
		termset, err := loadTermset(cfg.Catalog.TermsetPath)
		if err != nil {
			return nil, err
		}
		return textanalysis.NewRuleAnalyzer(c, lexicon, termset, logger), nil
	default:
		return nil, fmt.Errorf("unknown analyzer mode %q", cfg.Analyzer.Mode)
	}
}

func loadLexicon(path string) (*textanalysis.Lexicon, error) {
	if path == "" {
		return textanalysis.DefaultLexicon()
	}
	return textanalysis.LoadLexiconFile(path)
}

func loadTermset(path string) (*textanalysis.Termset, error) {
	if path == "" {
		return textanalysis.DefaultTermset()
	}
	return textanalysis.LoadTermsetFile(path)
}

func (comp *Components) wrapWithCache(cfg domain.CacheConfig, c *catalog.Catalog, next textanalysis.Analyzer, logger *logrus.Logger) textanalysis.Analyzer {
	var shared textanalysis.ResultCache
	if cfg.RedisURL != "" {
		redisCache, err := textanalysis.NewRedisCache(cfg)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-memory analysis cache only")
		} else {
			shared = redisCache
			comp.closers = append(comp.closers, redisCache.Close)
		}
	}
	return textanalysis.NewCachingAnalyzer(next, c.Fingerprint(), cfg.MaxItems, cfg.DefaultTTL, shared, logger)
}

func (comp *Components) openStorage(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) error {
	switch cfg.Storage.Driver {
	case "none":
		logger.Info("Patient store disabled")
		return nil
	case "sqlite", "":
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open patient store: %w", err)
		}
		comp.Store = s
		comp.closers = append(comp.closers, s.Close)
		logger.WithField("path", s.Path()).Info("Using SQLite patient store")
		return nil

	case "postgres":
		dbConfig := database.ConfigFromDomain(cfg.Database)

		runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return err
		}
		err = runner.Up(ctx)
		runner.Close()
		if err != nil {
			return err
		}

		s, err := store.NewPostgresStoreFromURL(dbConfig.URL())
		if err != nil {
			return fmt.Errorf("failed to open patient store: %w", err)
		}
		comp.Store = s
		comp.closers = append(comp.closers, s.Close)

		db, err := database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			return err
		}
		comp.closers = append(comp.closers, func() error {
			db.Close()
			return nil
		})
		comp.Cases = repository.NewCaseRepository(db.Pool, logger)
		return nil

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
