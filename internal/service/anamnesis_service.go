package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/explain"
	"github.com/anamnesis-symptom-engine/internal/extraction"
	"github.com/anamnesis-symptom-engine/internal/metrics"
	"github.com/anamnesis-symptom-engine/internal/repository"
	"github.com/anamnesis-symptom-engine/internal/store"
)

const (
	// casePageSize is the number of labelled cases read per query.
	casePageSize = 500
	// patientLockStripes is the number of mutexes patient updates are
	// spread over.
	patientLockStripes = 256
)

// ErrStoreUnavailable is returned by patient operations when no patient
// store is configured.
var ErrStoreUnavailable = errors.New("patient store is not configured")

// CaseSource lists labelled cases. Implemented by repository.CaseRepository.
type CaseSource interface {
	List(ctx context.Context, source string, limit, offset int) ([]*repository.LabeledCase, error)
}

// Options controls extraction inside the service.
type Options struct {
	Concurrency    int
	SplitSentences bool
}

// AnamnesisService builds symptom records from patient messages, keeps the
// accumulated record of each patient and scores the extractor against
// labelled cases.
type AnamnesisService struct {
	logger    *logrus.Logger
	catalog   *catalog.Catalog
	extractor extraction.Extractor
	store     store.Store
	cases     CaseSource
	explainer *explain.Explainer
	options   Options

	patientLocks [patientLockStripes]sync.Mutex
}

// NewAnamnesisService creates the service. patients and cases may be nil;
// the operations that need them then fail.
func NewAnamnesisService(
	logger *logrus.Logger,
	c *catalog.Catalog,
	extractor extraction.Extractor,
	patients store.Store,
	cases CaseSource,
	explainer *explain.Explainer,
	options Options,
) *AnamnesisService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if explainer == nil {
		explainer = explain.NewExplainer(nil)
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 1
	}
	return &AnamnesisService{
		logger:    logger,
		catalog:   c,
		extractor: extractor,
		store:     patients,
		cases:     cases,
		explainer: explainer,
		options:   options,
	}
}

// Catalog returns the symptom catalog records are built over.
func (s *AnamnesisService) Catalog() *catalog.Catalog {
	return s.catalog
}

// HasStore reports whether patient records are persisted.
func (s *AnamnesisService) HasStore() bool {
	return s.store != nil
}

// ExtractText builds the record of a single message.
func (s *AnamnesisService) ExtractText(ctx context.Context, text string) (*anamnesis.Record, error) {
	start := time.Now()

	var (
		r   *anamnesis.Record
		err error
	)
	if s.options.SplitSentences {
		r, err = extraction.BuildSentenceRecord(ctx, s.extractor, s.catalog, text)
	} else {
		r, err = extraction.BuildRecord(ctx, s.extractor, s.catalog, text)
	}
	if err != nil {
		var extractErr *extraction.Error
		if !errors.As(err, &extractErr) {
			err = &extraction.Error{Text: text, Err: err}
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"present":     len(r.WithStatus(domain.YES)),
		"absent":      len(r.WithStatus(domain.NO)),
		"confused":    len(r.WithStatus(domain.CONFUSED)),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Extracted symptom record")

	return r, nil
}

// ExtractBatch builds one record per text. A failing text yields an all
// NO_INFO record with its error set.
func (s *AnamnesisService) ExtractBatch(ctx context.Context, texts []string) []extraction.Result {
	start := time.Now()
	results := extraction.Batch(ctx, s.extractor, s.catalog, texts, extraction.BatchOptions{
		Concurrency:    s.options.Concurrency,
		SplitSentences: s.options.SplitSentences,
		Logger:         s.logger,
	})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"texts":       len(texts),
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Batch extraction completed")

	return results
}

// RecordFromStatuses builds a record from a symptom-to-status map.
// Unknown symptom names are rejected.
func (s *AnamnesisService) RecordFromStatuses(statuses map[string]domain.SymptomStatus) (*anamnesis.Record, error) {
	for name := range statuses {
		if _, ok := s.catalog.Get(name); !ok {
			return nil, domain.NewValidationError("statuses", fmt.Sprintf("unknown symptom %q", name), name)
		}
	}
	return anamnesis.FromStatuses(s.catalog, statuses)
}

// MergeRecords merges records in order into a fresh one.
func (s *AnamnesisService) MergeRecords(records []map[string]domain.SymptomStatus) (*anamnesis.Record, error) {
	merged := anamnesis.New(s.catalog)
	for i, statuses := range records {
		r, err := s.RecordFromStatuses(statuses)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := merged.MergeFrom(r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return merged, nil
}

// Explain explains a record. A nil prediction asks the configured
// classifier for one.
func (s *AnamnesisService) Explain(ctx context.Context, statuses map[string]domain.SymptomStatus, prediction *explain.Prediction) (*explain.Explanation, error) {
	r, err := s.RecordFromStatuses(statuses)
	if err != nil {
		return nil, err
	}
	if prediction == nil {
		return s.explainer.Explain(ctx, r)
	}
	return s.explainer.ExplainPrediction(r, *prediction)
}

// PatientUpdate is the outcome of adding a message to a patient.
type PatientUpdate struct {
	Patient *store.PatientRecord `json:"patient"`
	Message *anamnesis.Record    `json:"message"`
	Record  *anamnesis.Record    `json:"record"`
}

// AddPatientMessage extracts a message and merges it into the patient's
// accumulated record. Messages of the same patient are applied one at a
// time.
func (s *AnamnesisService) AddPatientMessage(ctx context.Context, patientID, text string) (*PatientUpdate, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	if strings.TrimSpace(patientID) == "" {
		return nil, domain.NewValidationError("patient_id", "patient id is required", patientID)
	}

	unlock := s.lockPatient(patientID)
	defer unlock()

	message, err := s.ExtractText(ctx, text)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Get(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient %s: %w", patientID, err)
	}

	accumulated := anamnesis.New(s.catalog)
	if stored != nil {
		if accumulated, err = stored.Record(s.catalog); err != nil {
			return nil, err
		}
	} else {
		stored = store.NewPatientRecord(patientID, accumulated)
	}

	if _, err := accumulated.MergeFrom(message); err != nil {
		return nil, err
	}
	stored.Update(accumulated)

	if err := s.store.Save(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to save patient %s: %w", patientID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id":    patientID,
		"message_count": stored.MessageCount,
	}).Info("Patient record updated")

	return &PatientUpdate{Patient: stored, Message: message, Record: accumulated}, nil
}

// GetPatient returns the stored record of a patient and its in-memory form.
func (s *AnamnesisService) GetPatient(ctx context.Context, patientID string) (*store.PatientRecord, *anamnesis.Record, error) {
	if s.store == nil {
		return nil, nil, ErrStoreUnavailable
	}
	stored, err := s.store.Get(ctx, patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load patient %s: %w", patientID, err)
	}
	if stored == nil {
		return nil, nil, fmt.Errorf("patient %s: %w", patientID, domain.ErrNotFound)
	}
	r, err := stored.Record(s.catalog)
	if err != nil {
		return nil, nil, err
	}
	return stored, r, nil
}

// ListPatients returns stored patients, most recently updated first.
func (s *AnamnesisService) ListPatients(ctx context.Context, limit, offset int) ([]*store.PatientRecord, int64, error) {
	if s.store == nil {
		return nil, 0, ErrStoreUnavailable
	}
	records, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DeletePatient forgets a patient.
func (s *AnamnesisService) DeletePatient(ctx context.Context, patientID string) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	unlock := s.lockPatient(patientID)
	defer unlock()
	return s.store.Delete(ctx, patientID)
}

// lockPatient serialises updates of one patient. Patients sharing a stripe
// also wait for each other.
func (s *AnamnesisService) lockPatient(patientID string) func() {
	mu := &s.patientLocks[lockStripe(patientID)]
	mu.Lock()
	return mu.Unlock
}

func lockStripe(patientID string) int {
	h := fnv.New32a()
	h.Write([]byte(patientID))
	return int(h.Sum32() % patientLockStripes)
}

// EvaluateShowcase scores a showcase CSV that already holds both truth and
// extractor columns.
func (s *AnamnesisService) EvaluateShowcase(r io.Reader, enc metrics.Encoding) (*metrics.Report, error) {
	showcase, err := metrics.ReadShowcase(r, enc)
	if err != nil {
		return nil, err
	}
	tally, err := showcase.Tally()
	if err != nil {
		return nil, err
	}
	report := tally.Report()
	s.logger.WithFields(logrus.Fields{
		"cases":    report.Cases,
		"symptoms": len(report.Symptoms),
		"excluded": len(report.Excluded),
	}).Info("Showcase evaluated")
	return report, nil
}

// BuildShowcase runs the extractor over every labelled case of a source
// and pairs its output with the case truth. An empty source means all
// cases.
func (s *AnamnesisService) BuildShowcase(ctx context.Context, source string) (*metrics.Showcase, error) {
	cases, err := s.loadCases(ctx, source)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(cases))
	for i, lc := range cases {
		texts[i] = lc.Text
	}
	results := s.ExtractBatch(ctx, texts)

	showcase := metrics.NewShowcase(s.catalog.Names())
	for i, lc := range cases {
		truth, err := lc.TruthRecord(s.catalog)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", lc.ID, err)
		}
		if err := showcase.AddRecords(lc.ID.String(), lc.Text, truth, results[i].Record); err != nil {
			return nil, fmt.Errorf("case %s: %w", lc.ID, err)
		}
	}
	return showcase, nil
}

// EvaluateCases scores the extractor against the labelled cases of a
// source.
func (s *AnamnesisService) EvaluateCases(ctx context.Context, source string) (*metrics.Report, error) {
	showcase, err := s.BuildShowcase(ctx, source)
	if err != nil {
		return nil, err
	}
	tally, err := showcase.Tally()
	if err != nil {
		return nil, err
	}
	return tally.Report(), nil
}

func (s *AnamnesisService) loadCases(ctx context.Context, source string) ([]*repository.LabeledCase, error) {
	if s.cases == nil {
		return nil, errors.New("labelled case repository is not configured")
	}
	var all []*repository.LabeledCase
	for offset := 0; ; offset += casePageSize {
		page, err := s.cases.List(ctx, source, casePageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list labelled cases: %w", err)
		}
		all = append(all, page...)
		if len(page) < casePageSize {
			break
		}
	}
	s.logger.WithFields(logrus.Fields{
		"source": source,
		"cases":  len(all),
	}).Debug("Loaded labelled cases")
	return all, nil
}
