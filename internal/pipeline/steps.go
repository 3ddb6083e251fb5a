package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/nao1215/webcheck/internal/config"
	"github.com/nao1215/webcheck/internal/crawler"
	"github.com/nao1215/webcheck/internal/parser"
	"github.com/nao1215/webcheck/internal/report"
	"github.com/nao1215/webcheck/internal/scheme"
)

// CrawlStep fetches and parses every reachable link of the site.
//
// With Config.Continue set, the graph stored by an earlier run is restored
// first and only links that were not fetched yet are visited; otherwise the
// database is emptied before crawling.
type CrawlStep struct {
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawling step.
func NewCrawlStep(opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step. A cancelled crawl is not an error; the
// session stats record it.
func (s *CrawlStep) Do(ctx context.Context, sess *Session) error {
	cfg := sess.Config

	if cfg.Continue {
		n, err := sess.DB.LoadGraph(ctx, sess.Graph)
		if err != nil {
			return fmt.Errorf("failed to restore previous crawl: %w", err)
		}
		s.logger.Info("continuing previous crawl", "links", n)
	} else if err := sess.DB.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}

	fetchers, err := NewFetchers(cfg, sess.Client)
	if err != nil {
		return err
	}
	c := crawler.New(fetchers, NewParsers(),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithWait(cfg.Wait),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithLogger(s.logger),
	)

	stats, err := c.Crawl(ctx, sess.Graph, cfg.BaseURLs)
	sess.Stats = stats
	if err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"links", sess.Graph.Len(),
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"cancelled", stats.Cancelled,
		"duration", stats.Duration,
	)
	return nil
}

// NewFetchers registers a fetcher for every scheme enabled in cfg.
func NewFetchers(cfg *config.Config, client *http.Client) (*crawler.FetcherRegistry, error) {
	fetchers := crawler.NewFetcherRegistry()

	var httpSchemes []string
	for _, s := range []string{"http", "https"} {
		if slices.Contains(cfg.Schemes, s) {
			httpSchemes = append(httpSchemes, s)
		}
	}
	if len(httpSchemes) > 0 {
		fetchers.Register(scheme.NewHTTPFetcher(client,
			scheme.WithUserAgent(cfg.UserAgent),
			scheme.WithHeaders(cfg.Headers),
			scheme.WithMaxBodySize(cfg.MaxBodySize),
		), httpSchemes...)
	}

	if slices.Contains(cfg.Schemes, "ftp") {
		dial, err := scheme.NewFTPDialer(cfg.Proxies)
		if err != nil {
			return nil, err
		}
		fetchers.Register(scheme.NewFTPFetcher(dial,
			scheme.WithFTPTimeout(cfg.Timeout),
			scheme.WithFTPMaxBodySize(cfg.MaxBodySize),
		), "ftp")
	}

	if slices.Contains(cfg.Schemes, "file") {
		fetchers.Register(scheme.NewFileFetcher(cfg.MaxBodySize), "file")
	}

	return fetchers, nil
}

// NewParsers registers the content parsers by mime type.
func NewParsers() *crawler.ParserRegistry {
	parsers := crawler.NewParserRegistry()
	parsers.Register(parser.NewHTMLParser(), "text/html", "application/xhtml+xml")
	parsers.Register(parser.NewCSSParser(), "text/css")
	parsers.Register(parser.NewImageParser(), "image/jpeg", "image/tiff")
	return parsers
}

// DepthStep assigns page depths and finds the roots of the page hierarchy.
// It needs the complete graph, so it runs after the crawl.
type DepthStep struct {
	logger *slog.Logger
}

// NewDepthStep creates a new depth step.
func NewDepthStep(logger *slog.Logger) *DepthStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DepthStep{logger: logger}
}

// Name returns the step name.
func (s *DepthStep) Name() string {
	return "depth"
}

// RunAfterCancel implements CancelSafe.
func (s *DepthStep) RunAfterCancel() bool {
	return true
}

// Do executes the depth step.
func (s *DepthStep) Do(_ context.Context, sess *Session) error {
	sess.Roots = sess.Graph.ComputeDepths(sess.Config.BaseURLs)
	s.logger.Debug("depths computed", "roots", len(sess.Roots))
	return nil
}

// AnchorStep records a page problem for every reference to an anchor the
// target page does not define.
type AnchorStep struct {
	logger *slog.Logger
}

// NewAnchorStep creates a new anchor step.
func NewAnchorStep(logger *slog.Logger) *AnchorStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnchorStep{logger: logger}
}

// Name returns the step name.
func (s *AnchorStep) Name() string {
	return "anchors"
}

// RunAfterCancel implements CancelSafe.
func (s *AnchorStep) RunAfterCancel() bool {
	return true
}

// Do executes the anchor step.
func (s *AnchorStep) Do(_ context.Context, sess *Session) error {
	if n := sess.Graph.CheckAnchors(); n > 0 {
		s.logger.Info("unknown anchors referenced", "count", n)
	}
	return nil
}

// PersistStep stores the graph in the database, replacing its contents.
type PersistStep struct {
	logger *slog.Logger
}

// NewPersistStep creates a new persist step.
func NewPersistStep(logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// RunAfterCancel implements CancelSafe.
func (s *PersistStep) RunAfterCancel() bool {
	return true
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, sess *Session) error {
	if err := sess.DB.SaveGraph(ctx, sess.Graph); err != nil {
		return fmt.Errorf("failed to save crawl: %w", err)
	}
	s.logger.Debug("crawl saved", "path", sess.DB.Path(), "links", sess.Graph.Len())
	return nil
}

// ReportStep renders the configured report plugins into the output
// directory.
type ReportStep struct {
	version string
	logger  *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// WithReportVersion sets the version printed in the reports.
func WithReportVersion(version string) ReportStepOption {
	return func(s *ReportStep) {
		s.version = version
	}
}

// NewReportStep creates a new report step.
func NewReportStep(opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		version: "dev",
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// RunAfterCancel implements CancelSafe.
func (s *ReportStep) RunAfterCancel() bool {
	return true
}

// Do executes the report step. Files written before a plugin failed are
// still listed in the session.
func (s *ReportStep) Do(ctx context.Context, sess *Session) error {
	cfg := sess.Config

	plugins, err := report.Lookup(cfg.Plugins)
	if err != nil {
		return err
	}

	src := &report.Source{
		DB:       sess.DB,
		Graph:    sess.Graph,
		Roots:    sess.Roots,
		BaseURLs: cfg.BaseURLs,
		Stats:    sess.Stats,
		Settings: report.Settings{
			OldAge:       cfg.OldAge,
			NewAge:       cfg.NewAge,
			SlowSize:     cfg.SlowSize,
			SitemapLevel: cfg.SitemapLevel,
		},
	}
	w := report.NewWriter(cfg.OutputDir, plugins,
		report.WithLogger(s.logger),
		report.WithVersion(s.version),
		report.WithJSON(cfg.JSONReport),
	)

	written, err := w.Write(ctx, src)
	sess.Reports = append(sess.Reports, written...)
	s.logger.Info("reports written", "dir", cfg.OutputDir, "files", len(written))
	return err
}

// DefaultPipeline creates a pipeline with every webcheck step in order:
// crawl, depth, anchors, persist and report.
func DefaultPipeline(logger *slog.Logger, version string) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewCrawlStep(WithCrawlLogger(logger)),
		NewDepthStep(logger),
		NewAnchorStep(logger),
		NewPersistStep(logger),
		NewReportStep(
			WithReportLogger(logger),
			WithReportVersion(version),
		),
	)
	return p
}
