package textanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// RemoteConfig represents configuration for the remote engine client
type RemoteConfig struct {
	BaseURL    string        `json:"base_url"`
	APIKey     string        `json:"api_key"`
	Timeout    time.Duration `json:"timeout"`
	RateLimit  int           `json:"rate_limit"` // requests per second
	RetryCount int           `json:"retry_count"`
	BatchSize  int           `json:"batch_size"`
}

// RemoteAnalyzer talks JSON over HTTP to an external text-analysis engine.
// Calls are rate limited, retried on transient failures and guarded by a
// circuit breaker.
type RemoteAnalyzer struct {
	baseURL    string
	apiKey     string
	batchSize  int
	retryCount int
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Entities []Entity `json:"entities"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

type batchResponse struct {
	Results []analyzeResponse `json:"results"`
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// NewRemoteAnalyzer creates a new remote engine client
func NewRemoteAnalyzer(config RemoteConfig, logger *logrus.Logger) *RemoteAnalyzer {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "text-analysis",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			var perm *permanentError
			return err == nil || errors.As(err, &perm)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RemoteAnalyzer{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		batchSize:  config.BatchSize,
		retryCount: config.RetryCount,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:   breaker,
		logger:    logger,
	}
}

// Analyze sends one text to the engine.
func (r *RemoteAnalyzer) Analyze(ctx context.Context, text string) ([]Entity, error) {
	var resp analyzeResponse
	if err := r.call(ctx, "/analyze", analyzeRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// AnalyzeBatch sends texts in chunks of the configured batch size. The
// result is positionally aligned with texts.
func (r *RemoteAnalyzer) AnalyzeBatch(ctx context.Context, texts []string) ([][]Entity, error) {
	out := make([][]Entity, 0, len(texts))
	for start := 0; start < len(texts); start += r.batchSize {
		end := start + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		var resp batchResponse
		if err := r.call(ctx, "/analyze/batch", batchRequest{Texts: chunk}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Results) != len(chunk) {
			return nil, fmt.Errorf("engine returned %d results for %d texts", len(resp.Results), len(chunk))
		}
		for _, res := range resp.Results {
			out = append(out, res.Entities)
		}
	}
	return out, nil
}

// State returns the circuit breaker state.
func (r *RemoteAnalyzer) State() gobreaker.State {
	return r.breaker.State()
}

func (r *RemoteAnalyzer) call(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.retryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := r.rateLimit.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}

		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.post(ctx, path, payload, out)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
			break
		}
		r.logger.WithError(err).WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt + 1,
		}).Warn("Text analysis request failed")
	}

	if errors.Is(lastErr, gobreaker.ErrOpenState) {
		return fmt.Errorf("text analysis service unavailable (circuit breaker open): %w", lastErr)
	}
	return fmt.Errorf("text analysis request failed: %w", lastErr)
}

func (r *RemoteAnalyzer) post(ctx context.Context, path string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("engine returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return &permanentError{fmt.Errorf("engine returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &permanentError{fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
