package crawler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/webcheck/internal/graph"
)

// ErrNoBaseURL is returned by Crawl when none of the base URLs could be
// turned into a Link.
var ErrNoBaseURL = errors.New("no usable base URL")

// Crawler visits every reachable, non-yanked Link of a graph.
//
// Links are taken from a FIFO queue in discovery order. Up to workers
// fetches run at the same time; with one worker the fetch order is fully
// deterministic. All graph writes go through the Graph's own lock.
type Crawler struct {
	fetchers *FetcherRegistry
	parsers  *ParserRegistry

	// workers is the maximum number of concurrent fetches.
	workers int

	// wait is the minimum time between the start of two fetches.
	wait time.Duration

	// timeout bounds a single fetch and parse. Zero means no bound.
	timeout time.Duration

	logger *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithWorkers sets the number of concurrent fetches. Values below one are
// treated as one.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		c.workers = max(n, 1)
	}
}

// WithWait sets the minimum time between the start of two fetches.
func WithWait(d time.Duration) Option {
	return func(c *Crawler) {
		c.wait = d
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.timeout = d
	}
}

// WithLogger sets the logger for crawl progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler dispatching to the given registries.
func New(fetchers *FetcherRegistry, parsers *ParserRegistry, opts ...Option) *Crawler {
	c := &Crawler{
		fetchers: fetchers,
		parsers:  parsers,
		workers:  1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Stats summarizes a crawl.
type Stats struct {
	// Fetched is the number of links a fetch was attempted for.
	Fetched int

	// Failed is the number of fetches that recorded a link problem.
	Failed int

	// Parsed is the number of fetched documents handed to a parser.
	Parsed int

	// Skipped is the number of queued links that were yanked.
	Skipped int

	// Cancelled is true when the context ended before the queue drained.
	Cancelled bool

	// Duration is the wall clock time of the crawl.
	Duration time.Duration
}

// outcome is what a worker reports back for one link.
type outcome struct {
	link    *graph.Link
	fetched bool
	failed  bool
	parsed  bool
	skipped bool
}

// Crawl fetches and parses links starting from bases until no unvisited
// link is left or ctx is cancelled.
//
// Cancellation is not an error: the in-flight fetches are drained and the
// returned Stats has Cancelled set, so the caller can still persist and
// report the partial graph.
func (c *Crawler) Crawl(ctx context.Context, g *graph.Graph, bases []string) (Stats, error) {
	start := time.Now()
	var stats Stats

	var queue []*graph.Link
	seen := make(map[graph.LinkID]struct{})
	push := func(l *graph.Link) {
		if _, ok := seen[l.ID]; ok {
			return
		}
		seen[l.ID] = struct{}{}
		queue = append(queue, l)
	}

	for _, raw := range bases {
		l, err := g.GetOrCreate(ctx, raw)
		if err != nil {
			c.logger.Warn("ignoring base URL", "url", raw, "error", err)
			continue
		}
		push(l)
	}
	if len(queue) == 0 {
		return stats, ErrNoBaseURL
	}

	limiter := rate.NewLimiter(rate.Every(c.wait), 1)
	results := make(chan outcome, c.workers)

	var eg errgroup.Group
	eg.SetLimit(c.workers)
	inflight := 0

	for {
		for len(queue) > 0 && inflight < c.workers && ctx.Err() == nil {
			l := queue[0]
			if yanked, fetched := g.State(l); yanked != "" || fetched {
				queue = queue[1:]
				if yanked != "" {
					stats.Skipped++
					c.logger.Debug("skipping", "url", l.URL, "reason", yanked)
					continue
				}
				// Fetched by an earlier run of a continued crawl.
				for _, d := range g.Discovered(l) {
					push(d)
				}
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			queue = queue[1:]
			inflight++
			eg.Go(func() error {
				results <- c.process(ctx, g, l)
				return nil
			})
		}

		if inflight == 0 {
			break
		}
		o := <-results
		inflight--

		switch {
		case o.skipped:
			stats.Skipped++
		case o.fetched:
			stats.Fetched++
		}
		if o.failed {
			stats.Failed++
		}
		if o.parsed {
			stats.Parsed++
		}
		if ctx.Err() == nil {
			for _, d := range g.Discovered(o.link) {
				push(d)
			}
		}
	}
	_ = eg.Wait()

	stats.Cancelled = ctx.Err() != nil
	stats.Duration = time.Since(start)
	c.logger.Info("crawl finished",
		"links", g.Len(),
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"cancelled", stats.Cancelled,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return stats, nil
}

// process fetches one link and hands the content to the parser for its
// mime type.
func (c *Crawler) process(ctx context.Context, g *graph.Graph, l *graph.Link) outcome {
	o := outcome{link: l}

	f, ok := c.fetchers.Lookup(l.Scheme)
	if !ok {
		g.Yank(l, graph.ReasonUnsupportedScheme)
		o.skipped = true
		return o
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug("fetching", "url", l.URL)
	content, err := f.Fetch(ctx, g, l)
	if err != nil && errors.Is(err, context.Canceled) {
		// Interrupted rather than failed: leave the link unfetched.
		return o
	}
	g.MarkFetched(l)
	o.fetched = true
	if err != nil {
		c.logger.Info("fetch failed", "url", l.URL, "error", err)
		g.AddLinkProblem(l, err.Error())
		o.failed = true
		return o
	}
	if content == nil {
		return o
	}

	mimeType := g.MimeType(l)
	p, ok := c.parsers.Lookup(mimeType)
	if !ok {
		return o
	}
	o.parsed = true
	if err := p.Parse(ctx, g, l, content); err != nil {
		g.AddPageProblem(l, err.Error())
	}
	return o
}
