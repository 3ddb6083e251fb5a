package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/encoding/htmlindex"
)

// DefaultMaxRedirects is the redirect chain length after which a link is
// reported with "too many redirects".
const DefaultMaxRedirects = 5

// Classifier decides whether a URL is part of the checked site and whether
// it must be skipped. Implementations must be safe for concurrent use and
// return the same answer for the same URL.
type Classifier interface {
	Classify(ctx context.Context, u *url.URL) (internal bool, yanked string)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, u *url.URL) (bool, string)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, u *url.URL) (bool, string) {
	return f(ctx, u)
}

type edge struct {
	from LinkID
	to   LinkID
}

// Graph owns every Link of one crawl session.
//
// All methods are safe for concurrent use: a single mutex serializes node
// creation, edge changes and diagnostics, so the parent lists stay the
// exact inverse of the child and embed edges.
type Graph struct {
	mu sync.Mutex

	classifier   Classifier
	maxRedirects int
	logger       *slog.Logger

	// links is the arena. Pruned links keep their slot so IDs stay stable.
	links []*Link

	// index maps normalized URLs to arena slots.
	index map[string]LinkID

	childEdges map[edge]struct{}
	embedEdges map[edge]struct{}
}

// Option configures a Graph.
type Option func(*Graph)

// WithMaxRedirects sets the longest allowed redirect chain.
// A negative value disables the limit.
func WithMaxRedirects(n int) Option {
	return func(g *Graph) {
		g.maxRedirects = n
	}
}

// WithLogger sets the logger used for graph diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// New creates an empty Graph that classifies new Links with c.
func New(c Classifier, opts ...Option) *Graph {
	g := &Graph{
		classifier:   c,
		maxRedirects: DefaultMaxRedirects,
		index:        make(map[string]LinkID),
		childEdges:   make(map[edge]struct{}),
		embedEdges:   make(map[edge]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// GetOrCreate returns the Link for raw, creating and classifying it on first
// reference. URLs that normalize to the same key always yield the same Link.
func (g *Graph) GetOrCreate(ctx context.Context, raw string) (*Link, error) {
	link, _, err := g.getOrCreate(ctx, raw)
	return link, err
}

func (g *Graph) getOrCreate(ctx context.Context, raw string) (*Link, string, error) {
	u, fragment, err := Normalize(raw)
	if err != nil {
		return nil, "", err
	}
	key := u.String()

	g.mu.Lock()
	if id, ok := g.index[key]; ok {
		link := g.links[id]
		g.mu.Unlock()
		return link, fragment, nil
	}
	g.mu.Unlock()

	// Classification may fetch robots.txt, so it runs outside the lock.
	internal, yanked := false, ""
	if g.classifier != nil {
		internal, yanked = g.classifier.Classify(ctx, u)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.index[key]; ok {
		return g.links[id], fragment, nil
	}
	link := &Link{
		ID:         LinkID(len(g.links)),
		URL:        key,
		Scheme:     u.Scheme,
		Host:       u.Host,
		Path:       u.Path,
		Query:      u.RawQuery,
		IsInternal: internal,
		Yanked:     yanked,
		Depth:      NoDepth,
	}
	if u.Opaque != "" {
		link.Path = u.Opaque
	}
	g.links = append(g.links, link)
	g.index[key] = link.ID
	g.logger.Debug("link discovered", "url", key, "internal", internal, "yanked", yanked)
	return link, fragment, nil
}

// Lookup returns the Link registered for raw, or nil.
func (g *Graph) Lookup(raw string) *Link {
	key, err := Key(raw)
	if err != nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.index[key]; ok {
		return g.links[id]
	}
	return nil
}

// Get returns the Link with the given ID, or nil if it was pruned or never
// existed.
func (g *Graph) Get(id LinkID) *Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.get(id)
}

func (g *Graph) get(id LinkID) *Link {
	if id < 0 || int(id) >= len(g.links) {
		return nil
	}
	if l := g.links[id]; !l.pruned {
		return l
	}
	return nil
}

// Links returns all live Links in creation order.
func (g *Graph) Links() []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Link, 0, len(g.index))
	for _, l := range g.links {
		if !l.pruned {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the number of live Links.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.index)
}

// AddChild records a navigational edge from parent to raw.
// Edges leaving external pages are not tracked.
func (g *Graph) AddChild(ctx context.Context, parent *Link, raw string) error {
	return g.addEdge(ctx, parent, raw, g.childEdges, &parent.children)
}

// AddEmbed records that parent embeds the resource at raw.
// Edges leaving external pages are not tracked.
func (g *Graph) AddEmbed(ctx context.Context, parent *Link, raw string) error {
	return g.addEdge(ctx, parent, raw, g.embedEdges, &parent.embedded)
}

func (g *Graph) addEdge(ctx context.Context, parent *Link, raw string, edges map[edge]struct{}, list *[]LinkID) error {
	if !parent.IsInternal {
		return nil
	}
	target, fragment, err := g.getOrCreate(ctx, raw)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if fragment != "" {
		g.addRequestedAnchor(target, parent.ID, fragment)
	}
	g.link(parent, target, edges, list)
	return nil
}

// link adds the edge parent→target to edges and list, keeping the parent
// list of target in sync. The caller holds g.mu.
func (g *Graph) link(parent, target *Link, edges map[edge]struct{}, list *[]LinkID) {
	e := edge{from: parent.ID, to: target.ID}
	if _, ok := edges[e]; ok {
		return
	}
	if !g.hasEdge(e) {
		target.parents = append(target.parents, parent.ID)
	}
	edges[e] = struct{}{}
	*list = append(*list, target.ID)
}

func (g *Graph) hasEdge(e edge) bool {
	if _, ok := g.childEdges[e]; ok {
		return true
	}
	_, ok := g.embedEdges[e]
	return ok
}

// unlinkChild removes the navigational edge parent→target. The caller
// holds g.mu.
func (g *Graph) unlinkChild(parent, target *Link) {
	e := edge{from: parent.ID, to: target.ID}
	if _, ok := g.childEdges[e]; !ok {
		return
	}
	delete(g.childEdges, e)
	parent.children = removeID(parent.children, target.ID)
	if _, ok := g.embedEdges[e]; !ok {
		target.parents = removeID(target.parents, parent.ID)
	}
}

// Children returns the navigational targets of l in discovery order.
func (g *Graph) Children(l *Link) []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveIDs(l.children)
}

// Embedded returns the resources embedded by l in discovery order.
func (g *Graph) Embedded(l *Link) []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveIDs(l.embedded)
}

// Parents returns every Link that lists l as child or embed.
func (g *Graph) Parents(l *Link) []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveIDs(l.parents)
}

func (g *Graph) resolveIDs(ids []LinkID) []*Link {
	out := make([]*Link, 0, len(ids))
	for _, id := range ids {
		if l := g.get(id); l != nil {
			out = append(out, l)
		}
	}
	return out
}

// AddAnchor records a named anchor defined on l. Anchor names are case
// insensitive; a second definition is reported as a page problem.
func (g *Graph) AddAnchor(l *Link, name string) {
	name = lowerAnchor(name)
	g.mu.Lock()
	defer g.mu.Unlock()
	if slices.Contains(l.Anchors, name) {
		g.addPageProblem(l, fmt.Sprintf("anchor/id %q defined multiple times", name))
		return
	}
	l.Anchors = append(l.Anchors, name)
}

// AddRequestedAnchor records that parent references "#anchor" on l.
func (g *Graph) AddRequestedAnchor(l *Link, parent *Link, anchor string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addRequestedAnchor(l, parent.ID, anchor)
}

func (g *Graph) addRequestedAnchor(l *Link, parent LinkID, anchor string) {
	ra := RequestedAnchor{Parent: parent, Anchor: anchor}
	if !slices.Contains(l.RequestedAnchors, ra) {
		l.RequestedAnchors = append(l.RequestedAnchors, ra)
	}
}

func lowerAnchor(name string) string {
	return strings.ToLower(name)
}

// AddLinkProblem records a problem with retrieving l. The first problem
// also becomes the link status when none is set.
func (g *Graph) AddLinkProblem(l *Link, problem string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addLinkProblem(l, problem)
}

func (g *Graph) addLinkProblem(l *Link, problem string) {
	if slices.Contains(l.LinkProblems, problem) {
		return
	}
	l.LinkProblems = append(l.LinkProblems, problem)
	if l.Status == "" {
		l.Status = problem
	}
	g.logger.Debug("link problem", "url", l.URL, "problem", problem)
}

// AddPageProblem records a problem with the content of l.
// Problems on external pages are ignored.
func (g *Graph) AddPageProblem(l *Link, problem string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addPageProblem(l, problem)
}

func (g *Graph) addPageProblem(l *Link, problem string) {
	if !l.IsInternal || slices.Contains(l.PageProblems, problem) {
		return
	}
	l.PageProblems = append(l.PageProblems, problem)
	g.logger.Debug("page problem", "url", l.URL, "problem", problem)
}

// SetEncoding records the character encoding of l. The first encoding
// wins; names unknown to the WHATWG encoding index are page problems.
func (g *Graph) SetEncoding(l *Link, name string) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if l.Encoding != "" {
		return
	}
	if _, err := htmlindex.Get(name); err != nil {
		g.addPageProblem(l, "unknown encoding: "+name)
		return
	}
	l.Encoding = name
}

// Update runs fn with exclusive access to the graph so fetchers and parsers
// can set scalar fields such as MimeType, Size or Title.
func (g *Graph) Update(l *Link, fn func(*Link)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(l)
}

// MarkFetched records that a fetch of l has been attempted.
func (g *Graph) MarkFetched(l *Link) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.IsFetched = true
}

// Yank marks l as never to be fetched, keeping an earlier reason.
func (g *Graph) Yank(l *Link, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l.Yanked == "" {
		l.Yanked = reason
	}
}

// State returns the yank reason and fetch flag of l.
func (g *Graph) State(l *Link) (yanked string, fetched bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return l.Yanked, l.IsFetched
}

// MimeType returns the content type recorded for l.
func (g *Graph) MimeType(l *Link) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return l.MimeType
}

// Discovered returns the children and embedded resources of l.
func (g *Graph) Discovered(l *Link) []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.resolveIDs(l.children)
	return append(out, g.resolveIDs(l.embedded)...)
}
