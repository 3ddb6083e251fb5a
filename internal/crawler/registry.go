package crawler

import (
	"context"
	"mime"
	"slices"
	"strings"

	"github.com/nao1215/webcheck/internal/graph"
)

// Fetcher retrieves the resource behind a Link.
//
// Fetch records what it learns (status, mime type, size, redirects) on the
// graph and returns the content to parse. A nil slice with a nil error means
// there is nothing to parse, for example for external links or directories.
// A returned error becomes a link problem.
type Fetcher interface {
	Fetch(ctx context.Context, g *graph.Graph, link *graph.Link) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, g *graph.Graph, link *graph.Link) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, g *graph.Graph, link *graph.Link) ([]byte, error) {
	return f(ctx, g, link)
}

// Parser extracts children, embeds, anchors and metadata from fetched
// content. A returned error becomes a page problem.
type Parser interface {
	Parse(ctx context.Context, g *graph.Graph, link *graph.Link, content []byte) error
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, g *graph.Graph, link *graph.Link, content []byte) error

// Parse calls f.
func (f ParserFunc) Parse(ctx context.Context, g *graph.Graph, link *graph.Link, content []byte) error {
	return f(ctx, g, link, content)
}

// FetcherRegistry maps URL schemes to fetchers.
// It is filled at startup and read-only during a crawl.
type FetcherRegistry struct {
	fetchers map[string]Fetcher
}

// NewFetcherRegistry creates an empty FetcherRegistry.
func NewFetcherRegistry() *FetcherRegistry {
	return &FetcherRegistry{fetchers: make(map[string]Fetcher)}
}

// Register makes f the fetcher for every given scheme.
func (r *FetcherRegistry) Register(f Fetcher, schemes ...string) {
	for _, s := range schemes {
		r.fetchers[strings.ToLower(s)] = f
	}
}

// Lookup returns the fetcher registered for scheme.
func (r *FetcherRegistry) Lookup(scheme string) (Fetcher, bool) {
	f, ok := r.fetchers[strings.ToLower(scheme)]
	return f, ok
}

// Schemes returns the registered schemes in sorted order.
func (r *FetcherRegistry) Schemes() []string {
	out := make([]string, 0, len(r.fetchers))
	for s := range r.fetchers {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// ParserRegistry maps mime types to parsers. Keys are either exact types
// such as "text/html" or major type wildcards such as "image/*".
type ParserRegistry struct {
	parsers map[string]Parser
}

// NewParserRegistry creates an empty ParserRegistry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: make(map[string]Parser)}
}

// Register makes p the parser for every given mime type.
func (r *ParserRegistry) Register(p Parser, mimeTypes ...string) {
	for _, m := range mimeTypes {
		r.parsers[strings.ToLower(m)] = p
	}
}

// Lookup returns the parser for mimeType. Parameters such as charset are
// ignored; an exact match wins over a "major/*" match.
func (r *ParserRegistry) Lookup(mimeType string) (Parser, bool) {
	mt := baseMimeType(mimeType)
	if mt == "" {
		return nil, false
	}
	if p, ok := r.parsers[mt]; ok {
		return p, true
	}
	if major, _, ok := strings.Cut(mt, "/"); ok {
		if p, ok := r.parsers[major+"/*"]; ok {
			return p, true
		}
	}
	return nil, false
}

// baseMimeType lower-cases mimeType and strips its parameters.
func baseMimeType(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
