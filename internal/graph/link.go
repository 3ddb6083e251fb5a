package graph

import (
	"slices"
	"time"
)

// LinkID is the stable arena index of a Link within one Graph.
type LinkID int

// NoDepth marks a Link that is not reachable from any base URL.
const NoDepth = -1

// Yank reasons recorded on Links that must never be fetched.
const (
	ReasonYanked            = "yanked"
	ReasonExternalAvoided   = "external avoided"
	ReasonRobotsDisallowed  = "robots disallowed"
	ReasonUnsupportedScheme = "unsupported scheme"
)

// RequestedAnchor records that Parent referenced "#Anchor" on a Link.
type RequestedAnchor struct {
	Parent LinkID
	Anchor string
}

// Link is one node of the crawl graph: a normalized URL and everything
// learned about it.
//
// The identity and classification fields are fixed at creation. All other
// fields are written through Graph methods while a crawl is running, and
// may be read freely once the crawl has finished.
type Link struct {
	// ID is the arena index of the Link. It doubles as the database key.
	ID LinkID

	// URL is the normalized, fragment-free URL.
	URL string

	// Scheme, Host, Path and Query are the parsed components of URL.
	Scheme string
	Host   string
	Path   string
	Query  string

	// IsInternal reports whether the URL belongs to the checked site.
	IsInternal bool

	// Yanked is empty for links that may be fetched, otherwise the reason
	// the link is skipped.
	Yanked string

	// IsFetched is set once a fetch has been attempted.
	IsFetched bool

	// Status is a short summary of the fetch outcome such as "200 OK".
	Status string

	MimeType string
	Encoding string

	// Size is the content length in bytes, 0 when unknown.
	Size int64

	// Mtime is the last modification time, zero when unknown.
	Mtime time.Time

	Title  string
	Author string

	// RedirectDepth is 0 for links that do not redirect, otherwise the
	// number of redirect hops leading up to and including this one.
	RedirectDepth int

	// Depth is the shortest hop count from a base URL, NoDepth until the
	// depth pass reaches the link.
	Depth int

	// IsPage is set by parsers that recognize renderable page content.
	IsPage bool

	LinkProblems     []string
	PageProblems     []string
	Anchors          []string
	RequestedAnchors []RequestedAnchor

	children []LinkID
	embedded []LinkID
	parents  []LinkID

	pageChildren []LinkID
	pageDone     bool
	pruned       bool
}

// HasProblems reports whether any link or page problem was recorded.
func (l *Link) HasProblems() bool {
	return len(l.LinkProblems) > 0 || len(l.PageProblems) > 0
}

// HasAnchor reports whether name (case-insensitive) is defined on the page.
func (l *Link) HasAnchor(name string) bool {
	return slices.Contains(l.Anchors, lowerAnchor(name))
}

// appendID appends id to ids unless it is already present.
func appendID(ids []LinkID, id LinkID) ([]LinkID, bool) {
	if slices.Contains(ids, id) {
		return ids, false
	}
	return append(ids, id), true
}

func removeID(ids []LinkID, id LinkID) []LinkID {
	return slices.DeleteFunc(ids, func(v LinkID) bool { return v == id })
}
