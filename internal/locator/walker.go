// Package locator walks the store-locator site from the state index down to
// county pages and extracts one record per listed location.
package locator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/locator-cli/internal/census"
	"github.com/sells-group/locator-cli/internal/fetcher"
	"github.com/sells-group/locator-cli/internal/model"
	"github.com/sells-group/locator-cli/internal/resilience"
)

// maxPageBytes caps how much of a page is read into memory.
const maxPageBytes = 8 << 20

// Options configures a walk.
type Options struct {
	Concurrency int
	// States restricts the walk to the named states. Empty means all.
	States []string
	// RunID tags log lines and the result. Generated when empty.
	RunID string
}

// Result summarizes a finished walk.
type Result struct {
	RunID    string
	Pages    int64
	Records  int64
	Failed   int64
	Duration time.Duration
	Failures []resilience.Failure
}

// Walker drives the three page levels with a bounded number of concurrent
// fetches. Each URL is visited at most once. A Walker serves a single Run.
type Walker struct {
	fetcher  fetcher.Fetcher
	resolver census.Resolver
	parser   *Parser
	opts     Options

	sem    *semaphore.Weighted
	ledger *resilience.Ledger
	log    *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}

	pages, records atomic.Int64
}

// NewWalker creates a walker. The resolver is wrapped so each county's
// population is resolved once per run.
func NewWalker(f fetcher.Fetcher, r census.Resolver, p *Parser, opts Options) *Walker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Walker{
		fetcher:  f,
		resolver: census.NewMemo(r),
		parser:   p,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.Concurrency)),
		ledger:   resilience.NewLedger(),
		seen:     make(map[string]struct{}),
	}
}

// Run walks from startURL and sends every record to out. Run closes out
// when it returns. Failures below the root page are logged and recorded in
// the result; a root page failure or context cancellation is returned.
func (w *Walker) Run(ctx context.Context, startURL string, out chan<- model.Record) (*Result, error) {
	defer close(out)

	runID := w.opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	w.log = zap.L().With(zap.String("component", "locator.walker"), zap.String("run_id", runID))
	start := time.Now()

	w.log.Info("starting walk",
		zap.String("start_url", startURL),
		zap.Int("concurrency", w.opts.Concurrency),
		zap.Strings("states", w.opts.States),
	)

	root := model.Visit{Level: model.LevelStates, URL: startURL}
	w.markSeen(root.URL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.process(gctx, g, root, out)
	})
	err := g.Wait()

	res := &Result{
		RunID:    runID,
		Pages:    w.pages.Load(),
		Records:  w.records.Load(),
		Failed:   int64(w.ledger.Len()),
		Duration: time.Since(start),
		Failures: w.ledger.Failures(),
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		return res, err
	}

	w.log.Info("walk complete",
		zap.Int64("pages", res.Pages),
		zap.Int64("records", res.Records),
		zap.Int64("failed", res.Failed),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// process fetches one page, emits its records and schedules its children.
func (w *Walker) process(ctx context.Context, g *errgroup.Group, v model.Visit, out chan<- model.Record) error {
	vLog := w.log.With(zap.String("level", v.Level.String()), zap.String("url", v.URL))

	if v.Level == model.LevelLocations {
		pop, err := w.resolver.Population(ctx, v.State, v.County)
		if err != nil {
			return w.abandon(ctx, vLog, v, err)
		}
		v.Population = pop
	}

	vLog.Info("parsing " + v.Level.String())
	doc, body, err := w.fetch(ctx, v.URL)
	if err != nil {
		if v.Level == model.LevelStates {
			return eris.Wrap(err, "locator: fetch start page")
		}
		return w.abandon(ctx, vLog, v, err)
	}
	w.pages.Add(1)

	records, children := w.parser.Parse(v, doc)
	if len(records) == 0 && len(children) == 0 {
		if blocked, bt := DetectBlock(body); blocked {
			err := eris.Errorf("locator: blocked (%s) at %s", bt, v.URL)
			if v.Level == model.LevelStates {
				return err
			}
			return w.abandon(ctx, vLog, v, err)
		}
		vLog.Warn("page yielded nothing")
	}

	for _, rec := range records {
		select {
		case out <- rec:
			w.records.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if v.Level == model.LevelStates {
		children = w.filterStates(children)
	}
	for _, child := range children {
		if !w.markSeen(child.URL) {
			continue
		}
		g.Go(func() error {
			return w.process(ctx, g, child, out)
		})
	}
	return nil
}

// fetch downloads and parses a page, holding a concurrency slot while the
// request is in flight.
func (w *Walker) fetch(ctx context.Context, rawURL string) (*goquery.Document, []byte, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	defer w.sem.Release(1)

	rc, err := w.fetcher.Download(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(rc, maxPageBytes))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "locator: read %s", rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "locator: parse %s", rawURL)
	}
	if u, err := url.Parse(rawURL); err == nil {
		doc.Url = u
	}
	return doc, body, nil
}

// abandon records a failed branch. Context errors are passed through so
// the walk stops.
func (w *Walker) abandon(ctx context.Context, log *zap.Logger, v model.Visit, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	log.Error("abandoning branch",
		zap.String("state", v.State),
		zap.String("county", v.County),
		zap.Error(err),
	)
	w.ledger.Add(v, err)
	return nil
}

func (w *Walker) filterStates(children []model.Visit) []model.Visit {
	if len(w.opts.States) == 0 {
		return children
	}
	want := make(map[string]bool, len(w.opts.States))
	for _, s := range w.opts.States {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}
	kept := children[:0]
	for _, c := range children {
		if want[strings.ToLower(c.State)] {
			kept = append(kept, c)
		}
	}
	return kept
}

// markSeen reports whether rawURL is new to this run.
func (w *Walker) markSeen(rawURL string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[rawURL]; ok {
		return false
	}
	w.seen[rawURL] = struct{}{}
	return true
}
