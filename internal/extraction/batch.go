package extraction

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/catalog"
)

// BatchOptions controls batch extraction.
type BatchOptions struct {
	// Concurrency bounds the number of texts processed at once. Zero or
	// less means one.
	Concurrency int
	// SplitSentences builds each text's record from its sentences.
	SplitSentences bool
	Logger         *logrus.Logger
}

// Result is the outcome for one text of a batch. Err is set when the text
// could not be analysed; Record is then all NO_INFO.
type Result struct {
	Index  int               `json:"index"`
	Record *anamnesis.Record `json:"record"`
	Err    error             `json:"-"`
}

// Batch builds one record per text. Texts are independent: a failure on one
// text is reported in its result and does not stop the others. Results are
// in input order.
func Batch(ctx context.Context, ex Extractor, c *catalog.Catalog, texts []string, opts BatchOptions) []Result {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	results := make([]Result, len(texts))

	if be, ok := ex.(BatchExtractor); ok && !opts.SplitSentences {
		evidence, err := be.ExtractBatch(ctx, texts)
		if err == nil {
			for i := range texts {
				r := anamnesis.New(c)
				Apply(r, evidence[i])
				results[i] = Result{Index: i, Record: r}
			}
			return results
		}
		logger.WithError(err).Warn("Batch extraction failed, falling back to per-text extraction")
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			var (
				r   *anamnesis.Record
				err error
			)
			if opts.SplitSentences {
				r, err = BuildSentenceRecord(ctx, ex, c, text)
			} else {
				r, err = BuildRecord(ctx, ex, c, text)
			}
			if err != nil {
				logger.WithError(err).WithField("index", i).Warn("Skipping text that could not be analysed")
				r = anamnesis.New(c)
			}
			results[i] = Result{Index: i, Record: r, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Vectors returns the numeric vectors of a batch, in input order.
func Vectors(results []Result) [][]int {
	out := make([][]int, len(results))
	for i, r := range results {
		out[i] = r.Record.Vector()
	}
	return out
}
