package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nao1215/webcheck/internal/config"
	"github.com/nao1215/webcheck/internal/crawler"
	"github.com/nao1215/webcheck/internal/database"
	"github.com/nao1215/webcheck/internal/graph"
	"github.com/nao1215/webcheck/internal/robots"
	"github.com/nao1215/webcheck/internal/scheme"
	"github.com/nao1215/webcheck/internal/site"
)

// Session is the state of one webcheck run, shared by the pipeline steps.
type Session struct {
	// Config is the validated configuration.
	Config *config.Config

	// DB receives the crawled graph.
	DB *database.CrawlDB

	// Client is used for http, https and robots.txt requests.
	Client *http.Client

	// Site classifies URLs; Graph uses it for every new link.
	Site  *site.Site
	Graph *graph.Graph

	// Stats is set by the crawl step.
	Stats crawler.Stats

	// Roots is set by the depth step.
	Roots []*graph.Link

	// Reports lists the files written by the report step.
	Reports []string

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string

	// Errors collects the step errors.
	Errors []error
}

// NewSession builds the site, robots policy and empty graph for cfg.
// cfg must have been validated.
func NewSession(cfg *config.Config, db *database.CrawlDB, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := scheme.NewHTTPClient(cfg.Proxies, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	policy := robots.NewCache(client,
		robots.WithUserAgent(cfg.UserAgent),
		robots.WithTimeout(cfg.Timeout),
		robots.WithLogger(logger),
	)
	s, err := site.New(site.Options{
		BaseURLs:      cfg.BaseURLs,
		Hosts:         cfg.Hosts,
		BaseURLsOnly:  cfg.BaseURLsOnly,
		Excluded:      cfg.CompiledExcluded,
		Yanked:        cfg.CompiledYanked,
		AvoidExternal: cfg.AvoidExternalLinks,
		Schemes:       cfg.Schemes,
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to set up site: %w", err)
	}

	return &Session{
		Config: cfg,
		DB:     db,
		Client: client,
		Site:   s,
		Graph: graph.New(s,
			graph.WithMaxRedirects(cfg.RedirectDepth),
			graph.WithLogger(logger),
		),
	}, nil
}
