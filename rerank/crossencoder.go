package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// CrossEncoderConfig configures a CrossEncoderScorer.
type CrossEncoderConfig struct {
	// Endpoint is the base URL of the rerank service, e.g. "http://localhost:8080".
	// Requests are sent to Endpoint + "/rerank".
	Endpoint string

	// Model is sent with each request when set. Single-model servers ignore it.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// BatchSize is the maximum number of passages per request. Default: 32
	BatchSize int

	// Concurrency is the maximum number of requests in flight. Default: 4
	Concurrency int

	// Timeout bounds each HTTP request. Default: 30s
	Timeout time.Duration
}

// CrossEncoderScorer scores pairs with a remote cross-encoder.
type CrossEncoderScorer struct {
	cfg    CrossEncoderConfig
	client *http.Client
	logger *slog.Logger
}

var _ Scorer = (*CrossEncoderScorer)(nil)

// CrossEncoderOption configures a CrossEncoderScorer.
type CrossEncoderOption func(*CrossEncoderScorer)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) CrossEncoderOption {
	return func(s *CrossEncoderScorer) {
		if client != nil {
			s.client = client
		}
	}
}

// WithCrossEncoderLogger sets a custom logger.
// Default is slog.Default().
func WithCrossEncoderLogger(logger *slog.Logger) CrossEncoderOption {
	return func(s *CrossEncoderScorer) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "cross-encoder")
	}
}

// NewCrossEncoderScorer creates a cross-encoder client.
func NewCrossEncoderScorer(cfg CrossEncoderConfig, opts ...CrossEncoderOption) (*CrossEncoderScorer, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &CrossEncoderScorer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "cross-encoder"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *CrossEncoderScorer) Name() string { return "cross_encoder" }

type crossEncoderRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	RawScores bool     `json:"raw_scores"`
}

type crossEncoderResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// batch is a run of passages sharing one query, with their positions in the input.
type batch struct {
	query   string
	texts   []string
	indices []int
}

// Score sends every pair to the service and squashes the raw logits with Logistic.
func (s *CrossEncoderScorer) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	if len(pairs) == 0 {
		return scores, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, b := range s.batches(pairs) {
		g.Go(func() error {
			raw, err := s.scoreBatch(ctx, b.query, b.texts)
			if err != nil {
				return err
			}
			for i, idx := range b.indices {
				scores[idx] = Logistic(raw[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (s *CrossEncoderScorer) batches(pairs []Pair) []batch {
	var order []string
	grouped := make(map[string]*batch)
	var out []batch
	for i, p := range pairs {
		b, ok := grouped[p.Query]
		if !ok {
			b = &batch{query: p.Query}
			grouped[p.Query] = b
			order = append(order, p.Query)
		}
		b.texts = append(b.texts, p.Passage)
		b.indices = append(b.indices, i)
	}
	for _, q := range order {
		b := grouped[q]
		for start := 0; start < len(b.texts); start += s.cfg.BatchSize {
			end := min(start+s.cfg.BatchSize, len(b.texts))
			out = append(out, batch{query: q, texts: b.texts[start:end], indices: b.indices[start:end]})
		}
	}
	return out
}

// scoreBatch returns raw scores in the order of texts.
func (s *CrossEncoderScorer) scoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	payload, err := json.Marshal(crossEncoderRequest{
		Query:     query,
		Texts:     texts,
		Model:     s.cfg.Model,
		RawScores: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.cfg.Endpoint, "/")+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cross-encoder error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var results []crossEncoderResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode cross-encoder response: %w", err)
	}

	raw := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrScoreCount, r.Index)
		}
		raw[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: missing score for passage %d", ErrScoreCount, i)
		}
	}
	s.logger.Debug("scored batch", "query", query, "passages", len(texts))
	return raw, nil
}
