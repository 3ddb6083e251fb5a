package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webcheck/internal/crawler"
	"github.com/nao1215/webcheck/internal/database"
	"github.com/nao1215/webcheck/internal/graph"
)

// ErrUnknownPlugin is returned by Lookup for names no plugin answers to.
var ErrUnknownPlugin = errors.New("unknown report plugin")

// Plugin renders one report page.
type Plugin interface {
	// Name is the plugin identifier and the base name of its output file.
	Name() string

	// Title is the heading of the report page.
	Title() string

	// Generate writes the body of the report page to md.
	Generate(ctx context.Context, src *Source, md *markdown.Markdown) error
}

// Settings holds the thresholds the plugins report against.
type Settings struct {
	// OldAge is the age after which a page is old.
	OldAge time.Duration

	// NewAge is the age below which a page is new.
	NewAge time.Duration

	// SlowSize is the total page size in KiB above which a page is slow.
	SlowSize int

	// SitemapLevel is how many levels the site map shows.
	SitemapLevel int
}

// Source is everything a plugin can report on.
type Source struct {
	// DB holds the persisted graph. Most plugins query it.
	DB *database.CrawlDB

	// Graph is the crawled graph; the site map walks its page hierarchy.
	Graph *graph.Graph

	// Roots are the roots of the page hierarchy.
	Roots []*graph.Link

	// BaseURLs are the URLs the crawl started from.
	BaseURLs []string

	// Stats summarizes the crawl.
	Stats crawler.Stats

	Settings Settings

	// Now is the reference time for age based reports. Zero means the
	// current time.
	Now time.Time
}

func (s *Source) now() time.Time {
	if s.Now.IsZero() {
		return time.Now()
	}
	return s.Now
}

// Plugins returns every available plugin in menu order.
func Plugins() []Plugin {
	return []Plugin{
		&SitemapPlugin{},
		&BadLinksPlugin{},
		&ImagesPlugin{},
		&OldPlugin{},
		&NewPlugin{},
		&SlowPlugin{},
		&NoTitlesPlugin{},
		&ExternalPlugin{},
		&NotCheckedPlugin{},
		&ProblemsPlugin{},
	}
}

// Lookup returns the plugins with the given names, in that order.
func Lookup(names []string) ([]Plugin, error) {
	all := Plugins()
	out := make([]Plugin, 0, len(names))
	for _, name := range names {
		var found Plugin
		for _, p := range all {
			if p.Name() == name {
				found = p
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
		}
		out = append(out, found)
	}
	return out, nil
}
