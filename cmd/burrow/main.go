// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/burrow"
	"github.com/poiesic/burrow/ai"
	"github.com/poiesic/burrow/core"
	"github.com/poiesic/burrow/ingestion"
	"github.com/poiesic/burrow/metrics"
	"github.com/poiesic/burrow/reembed"
	"github.com/poiesic/burrow/rerank"
	"github.com/poiesic/burrow/retriever"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "burrow",
		Usage: "Recursive adaptive retrieval over a local passage database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Split files into passages, store and embed them",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: append(append(dbFlags(), aiFlags()...),
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum passage length in characters",
						Value: ingestion.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Characters shared by neighbouring passages",
						Value: ingestion.DefaultChunkOverlap,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of concurrent embedding workers (0 = NumCPU/2)",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Run a recursive retrieval",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags:     append(append(dbFlags(), aiFlags()...), searchFlags()...),
			},
			{
				Name:   "presets",
				Usage:  "List the retrieval presets",
				Action: presetsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the presets as JSON",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored passages with the configured embedding model",
				Action: reembedCommand,
				Flags: append(append(dbFlags(), aiFlags()...),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of passages to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N passages",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue from the last checkpoint of an interrupted run",
					},
				),
			},
		},
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
	}
}

func aiFlags() []cli.Flag {
	defaults := ai.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "OpenAI-compatible service host URL for embeddings and generation",
			Value:   defaults.EmbeddingHost,
			EnvVars: []string{"BURROW_HOST"},
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL (defaults to --host)",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: defaults.EmbeddingModel,
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Model used to write follow-up queries",
			Value: defaults.GeneratorModel,
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "API token sent to the AI services",
			EnvVars: []string{"BURROW_API_TOKEN"},
		},
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "preset",
			Aliases: []string{"p"},
			Usage:   "Retrieval preset (light, balanced, deep, single_layer)",
			Value:   retriever.PresetBalanced,
		},
		&cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML retrieval configuration; overrides --preset",
		},
		&cli.IntFlag{Name: "max-depth", Usage: "Maximum recursion depth; 1 disables recursion"},
		&cli.IntFlag{Name: "initial-k", Usage: "Passages fetched by the first search"},
		&cli.IntFlag{Name: "intermediate-k", Usage: "Passages fetched by follow-up searches"},
		&cli.IntFlag{Name: "final-k", Usage: "Passages returned"},
		&cli.Float64Flag{Name: "min-confidence", Usage: "Average relevance below which a search is expanded", Value: -1},
		&cli.IntFlag{Name: "sub-questions", Usage: "Follow-up queries per expansion", Value: -1},
		&cli.StringFlag{Name: "rerank", Usage: "Rerank method (none, cosine, cross_encoder)"},
		&cli.StringFlag{Name: "cross-encoder-url", Usage: "Base URL of the cross-encoder rerank service"},
		&cli.StringFlag{Name: "cross-encoder-model", Usage: "Model name sent to the cross-encoder service"},
		&cli.BoolFlag{Name: "keyword", Usage: "Search an in-memory keyword index instead of embeddings"},
		&cli.BoolFlag{Name: "json", Usage: "Print passages and report as JSON"},
		&cli.BoolFlag{Name: "tree", Usage: "Print the retrieval tree"},
		&cli.BoolFlag{Name: "metrics", Usage: "Print retrieval metrics to stderr"},
	}
}

func aiConfig(c *cli.Context) *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
	}
	if host := c.String("embedding-host"); host != "" {
		opts = append(opts, ai.WithEmbeddingHost(host))
	}
	if token := c.String("api-token"); token != "" {
		opts = append(opts, ai.WithAPIToken(token))
	}
	return ai.NewConfig(opts...)
}

func openEngine(c *cli.Context) (*burrow.Engine, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	cfg := aiConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	engine, err := burrow.NewEngine(dbPath, burrow.WithAIConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

// loadSources reads files concurrently, keeping the argument order.
func loadSources(ctx context.Context, paths []string) ([]ingestion.Source, error) {
	sources := make([]ingestion.Source, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			sources[i] = ingestion.Source{
				Name:     path,
				Text:     string(data),
				Metadata: map[string]string{"file": filepath.Base(path)},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := c.Context
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	sources, err := loadSources(ctx, c.Args().Slice())
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	opts := []ingestion.Option{ingestion.WithChunking(c.Int("chunk-size"), c.Int("chunk-overlap"))}
	if size := c.Int("pool-size"); size > 0 {
		opts = append(opts, ingestion.WithPoolSize(size))
	}
	pipeline, err := engine.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	ids, err := pipeline.Ingest(ctx, sources...)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if err := pipeline.Wait(); err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Ingested %d passages from %d files\n", len(ids), len(sources))
	return nil
}

// searchConfig resolves the retrieval configuration: a YAML file or preset,
// then any explicitly set flags.
func searchConfig(c *cli.Context) (retriever.Config, error) {
	var cfg retriever.Config
	var err error
	if path := c.Path("config"); path != "" {
		cfg, err = retriever.LoadConfig(path)
	} else {
		cfg, err = retriever.Preset(c.String("preset"))
	}
	if err != nil {
		return retriever.Config{}, err
	}

	if c.IsSet("max-depth") {
		cfg.MaxRecursionDepth = c.Int("max-depth")
		cfg.EnableRecursion = cfg.MaxRecursionDepth > 1
	}
	if c.IsSet("initial-k") {
		cfg.InitialK = c.Int("initial-k")
	}
	if c.IsSet("intermediate-k") {
		cfg.IntermediateK = c.Int("intermediate-k")
	}
	if c.IsSet("final-k") {
		cfg.FinalK = c.Int("final-k")
	}
	if c.IsSet("min-confidence") {
		cfg.MinConfidenceScore = c.Float64("min-confidence")
	}
	if c.IsSet("sub-questions") {
		cfg.NumSubQuestions = c.Int("sub-questions")
	}
	if c.IsSet("rerank") {
		cfg.RerankMethod = retriever.RerankMethod(strings.ToLower(c.String("rerank")))
	}
	return cfg, cfg.Validate()
}

type searchOutput struct {
	Query    string         `json:"query"`
	Passages []core.Passage `json:"passages"`
	Report   *core.Report   `json:"report"`
}

func searchCommand(c *cli.Context) error {
	ctx := c.Context
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	cfg, err := searchConfig(c)
	if err != nil {
		return err
	}

	var opts []retriever.Option
	if url := c.String("cross-encoder-url"); url != "" {
		scorer, err := rerank.NewCrossEncoderScorer(rerank.CrossEncoderConfig{
			Endpoint: url,
			Model:    c.String("cross-encoder-model"),
		})
		if err != nil {
			return err
		}
		opts = append(opts, retriever.WithCrossEncoder(scorer))
	}

	var registry *prometheus.Registry
	if c.Bool("metrics") {
		registry = prometheus.NewRegistry()
		opts = append(opts, retriever.WithMonitor(metrics.NewMonitor("burrow", registry)))
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var r *retriever.Retriever
	if c.Bool("keyword") {
		var store io.Closer
		r, store, err = keywordRetriever(ctx, engine, cfg, opts)
		if err != nil {
			return err
		}
		defer store.Close()
	} else {
		r, err = engine.NewRetriever(cfg, opts...)
		if err != nil {
			return err
		}
	}

	passages, report, err := r.RetrieveWithReport(ctx, query)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if registry != nil {
		if err := writeMetrics(c.App.ErrWriter, registry); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(searchOutput{Query: query, Passages: passages, Report: report})
	}

	printPassages(c.App.Writer, passages, report)
	if c.Bool("tree") {
		fmt.Fprintln(c.App.Writer)
		printTree(c.App.Writer, report.Tree, 0)
	}
	return nil
}

func keywordRetriever(ctx context.Context, engine *burrow.Engine, cfg retriever.Config, opts []retriever.Option) (*retriever.Retriever, io.Closer, error) {
	r, store, err := engine.NewKeywordRetriever(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return r, store, nil
}

func printPassages(w io.Writer, passages []core.Passage, report *core.Report) {
	fmt.Fprintf(w, "Found %d passages (%d collected, depth %d, %d searches, %.2fs)\n",
		len(passages), report.TotalResults, report.RecursionDepthUsed, report.QueriesIssued, report.Elapsed.Seconds())
	for i, p := range passages {
		source, _ := p.Metadata["source"].(string)
		fmt.Fprintf(w, "%d: [%0.3f] depth=%d via %q %s\n", i+1, p.RelevanceScore, p.RetrievalDepth, p.Query(), source)
		fmt.Fprintf(w, "   %s\n", oneLine(p.Content, 160))
	}
}

func printTree(w io.Writer, node *core.TreeNode, indent int) {
	if node == nil {
		return
	}
	fmt.Fprintf(w, "%s- %q depth=%d results=%d avg=%.3f %s\n",
		strings.Repeat("  ", indent), node.Query, node.Depth, node.Results, node.AvgScore, node.Status)
	for _, child := range node.Children {
		printTree(w, child, indent+1)
	}
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func presetsCommand(c *cli.Context) error {
	presets := retriever.Presets()
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(presets)
	}
	for _, p := range presets {
		cfg := p.Config
		fmt.Fprintf(c.App.Writer, "%-13s %s (%s)\n", p.Name, p.Description, p.EstimatedLatency)
		fmt.Fprintf(c.App.Writer, "%-13s use: %s\n", "", p.UseCase)
		fmt.Fprintf(c.App.Writer, "%-13s recursion=%t depth=%d k=%d/%d/%d sub_questions=%d min_confidence=%.2f\n",
			"", cfg.EnableRecursion, cfg.MaxRecursionDepth, cfg.InitialK, cfg.IntermediateK, cfg.FinalK,
			cfg.NumSubQuestions, cfg.MinConfidenceScore)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := c.Context

	// Create reembedding config
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Resume:         c.Bool("resume"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(c.App.ErrWriter)

	if err := engine.NewReembedder(reembedConfig, c.App.ErrWriter).Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
