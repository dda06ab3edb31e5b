package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/locator-cli/internal/census"
	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/emit"
	"github.com/sells-group/locator-cli/internal/fetcher"
	"github.com/sells-group/locator-cli/internal/locator"
	"github.com/sells-group/locator-cli/internal/model"
	"github.com/sells-group/locator-cli/internal/resilience"
	"github.com/sells-group/locator-cli/internal/store"
)

var (
	crawlStartURL    string
	crawlFormat      string
	crawlOutput      string
	crawlSchema      string
	crawlPopulation  string
	crawlDataset     string
	crawlStates      string
	crawlConcurrency int
	crawlStride      int
	crawlMode        string
	crawlFailures    string
)

// crawlSummary is printed to stdout when a crawl finishes.
type crawlSummary struct {
	RunID    string `json:"run_id"`
	Pages    int64  `json:"pages"`
	Records  int64  `json:"records"`
	Written  int64  `json:"written"`
	Failed   int64  `json:"failed"`
	Duration string `json:"duration"`
	Format   string `json:"format"`
	Output   string `json:"output,omitempty"`
	// Rates is the request rate per host at the end of the run.
	Rates map[string]float64 `json:"rates,omitempty"`

	failures []resilience.Failure
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the store locator and write enriched location records",
	Long:  "Visits every state and county page, extracts each listed location, attaches the county population and writes the records to csv, json, xlsx, sqlite or postgres.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyCrawlFlags(cmd, cfg)

		sum, err := runCrawl(ctx, cfg)
		if sum != nil && crawlFailures != "" {
			if werr := writeFailures(crawlFailures, sum.failures); werr != nil {
				zap.L().Warn("could not write failure ledger", zap.Error(werr))
			}
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

func init() {
	f := crawlCmd.Flags()
	f.StringVar(&crawlStartURL, "start-url", "", "root state-index URL")
	f.StringVar(&crawlFormat, "format", "", "output format: csv, json, xlsx, sqlite or postgres")
	f.StringVar(&crawlOutput, "output", "", "output file path")
	f.StringVar(&crawlSchema, "schema", "", "output schema: full or compact")
	f.StringVar(&crawlPopulation, "population", "", "population strategy: api or table")
	f.StringVar(&crawlDataset, "dataset", "", "population dataset path or URL (csv, xlsx or zip)")
	f.StringVar(&crawlStates, "states", "", "comma-separated states to crawl (default all)")
	f.IntVar(&crawlConcurrency, "concurrency", 0, "max concurrent page fetches")
	f.IntVar(&crawlStride, "stride", 0, "positional name stride")
	f.StringVar(&crawlMode, "mode", "", "extraction mode: positional or block")
	f.StringVar(&crawlFailures, "failures", "", "write abandoned branches as JSON to this path")
	rootCmd.AddCommand(crawlCmd)
}

// applyCrawlFlags copies explicitly set flags over the loaded config.
func applyCrawlFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("start-url") {
		c.Crawl.StartURL = crawlStartURL
	}
	if flags.Changed("format") {
		c.Output.Format = crawlFormat
	}
	if flags.Changed("output") {
		c.Output.Path = crawlOutput
	}
	if flags.Changed("schema") {
		c.Output.Schema = crawlSchema
	}
	if flags.Changed("population") {
		c.Census.Strategy = crawlPopulation
	}
	if flags.Changed("dataset") {
		c.Census.DatasetPath = crawlDataset
	}
	if flags.Changed("states") {
		c.Crawl.States = splitAndTrim(crawlStates)
	}
	if flags.Changed("concurrency") {
		c.Crawl.Concurrency = crawlConcurrency
	}
	if flags.Changed("stride") {
		c.Crawl.NameStride = crawlStride
	}
	if flags.Changed("mode") {
		c.Crawl.ExtractMode = crawlMode
	}
}

// newFetcher builds the HTTP fetcher shared by the walker and the census resolver.
func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Crawl.UserAgent,
		Timeout:    time.Duration(c.Crawl.TimeoutSecs) * time.Second,
		MaxRetries: c.Crawl.MaxRetries,
		RatePerSec: c.Crawl.RatePerSec,
	})
}

// runCrawl walks the locator and streams records into the configured sink.
func runCrawl(ctx context.Context, c *config.Config) (*crawlSummary, error) {
	if err := c.Validate("crawl"); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "crawl"))

	f := newFetcher(c)
	resolver, err := census.New(ctx, c.Census, f)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: population resolver")
	}

	schema, err := emit.SchemaByName(c.Output.Schema)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	sink, err := openSink(ctx, c, schema, runID)
	if err != nil {
		return nil, err
	}

	parser := locator.NewParser(c.Crawl.Selectors, locator.NewExtractor(c.Crawl))
	w := locator.NewWalker(f, resolver, parser, locator.Options{
		Concurrency: c.Crawl.Concurrency,
		States:      c.Crawl.States,
		RunID:       runID,
	})

	records := make(chan model.Record, 64)
	var (
		res     *locator.Result
		written int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = w.Run(gctx, c.Crawl.StartURL, records)
		return err
	})
	g.Go(func() error {
		var err error
		written, err = emit.Drain(gctx, records, sink)
		return err
	})
	err = g.Wait()
	if cerr := emit.Finish(sink, err); err == nil {
		err = cerr
	}

	sum := &crawlSummary{
		RunID:   runID,
		Written: written,
		Format:  c.Output.Format,
		Rates:   f.Rates(),
	}
	if c.Output.Format != "postgres" {
		sum.Output = c.Output.Path
	}
	if res != nil {
		sum.Pages = res.Pages
		sum.Records = res.Records
		sum.Failed = res.Failed
		sum.Duration = res.Duration.Round(time.Millisecond).String()
		sum.failures = res.Failures
	}
	if err != nil {
		return sum, eris.Wrap(err, "crawl: run")
	}

	log.Info("crawl complete",
		zap.String("run_id", runID),
		zap.Int64("pages", sum.Pages),
		zap.Int64("records", sum.Records),
		zap.Int64("written", sum.Written),
		zap.Int64("failed", sum.Failed),
		zap.String("duration", sum.Duration),
		zap.Any("rates", sum.Rates),
	)
	return sum, nil
}

// runSink is implemented by the database sinks.
type runSink interface {
	emit.Sink
	emit.Failer
	Migrate(ctx context.Context) error
	BeginRun(ctx context.Context, startURL string) error
}

// openSink opens the sink for c.Output.Format. Database sinks are migrated
// and the run is recorded before the first write.
func openSink(ctx context.Context, c *config.Config, schema emit.Schema, runID string) (emit.Sink, error) {
	var (
		s   runSink
		err error
	)
	switch c.Output.Format {
	case "sqlite":
		s, err = store.NewSQLite(c.Output.Path, runID)
	case "postgres":
		s, err = store.NewPostgres(ctx, c.Store.DatabaseURL, runID)
	default:
		return emit.OpenFile(c.Output.Format, c.Output.Path, schema)
	}
	if err != nil {
		return nil, eris.Wrap(err, "crawl: open store")
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, eris.Wrap(err, "crawl: migrate store")
	}
	if err := s.BeginRun(ctx, c.Crawl.StartURL); err != nil {
		_ = s.Close()
		return nil, eris.Wrap(err, "crawl: begin run")
	}
	return s, nil
}

// writeFailures writes the abandoned branches as an indented JSON array.
func writeFailures(path string, failures []resilience.Failure) error {
	if failures == nil {
		failures = []resilience.Failure{}
	}
	data, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return eris.Wrap(err, "crawl: marshal failures")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "crawl: write failures")
}
