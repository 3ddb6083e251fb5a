package site

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/webcheck/internal/graph"
)

// RobotsPolicy answers whether robots.txt permits fetching a path.
type RobotsPolicy interface {
	Allowed(ctx context.Context, scheme, host, path string) bool
}

// Options describes the boundary of the checked site.
type Options struct {
	// BaseURLs are the URLs the crawl starts from.
	BaseURLs []string

	// Hosts are additional host names considered part of the site.
	Hosts []string

	// BaseURLsOnly restricts the site to URLs below one of the base URLs
	// instead of every URL on their hosts.
	BaseURLsOnly bool

	// Excluded patterns force matching URLs to be external.
	Excluded []*regexp.Regexp

	// Yanked patterns mark matching URLs as never to be checked.
	Yanked []*regexp.Regexp

	// AvoidExternal skips checking external URLs altogether.
	AvoidExternal bool

	// Schemes lists the URL schemes webcheck may fetch. URLs with other
	// schemes are external. Empty means every scheme.
	Schemes []string
}

// Site classifies URLs relative to the checked site.
// It is safe for concurrent use.
type Site struct {
	bases  []string
	hosts  map[string]struct{}
	opts   Options
	robots RobotsPolicy
}

// New creates a Site. Base URLs are normalized; robots may be nil, in which
// case robots.txt is not consulted.
func New(opts Options, robots RobotsPolicy) (*Site, error) {
	s := &Site{
		hosts:  make(map[string]struct{}),
		opts:   opts,
		robots: robots,
	}
	for _, raw := range opts.BaseURLs {
		u, _, err := graph.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		s.bases = append(s.bases, u.String())
		s.hosts[u.Host] = struct{}{}
	}
	for _, h := range opts.Hosts {
		s.hosts[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	s.opts.Schemes = make([]string, len(opts.Schemes))
	for i, scheme := range opts.Schemes {
		s.opts.Schemes[i] = strings.ToLower(scheme)
	}
	return s, nil
}

// BaseURLs returns the normalized base URLs.
func (s *Site) BaseURLs() []string {
	return slices.Clone(s.bases)
}

// Classify reports whether u is internal and, if it must be skipped, why.
//
// The yank checks run in order and the first match wins: a yank pattern,
// an external link while external links are avoided, and finally the
// robots.txt of internal http(s) URLs.
func (s *Site) Classify(ctx context.Context, u *url.URL) (bool, string) {
	raw := u.String()
	internal := s.IsInternal(u)

	if matchAny(s.opts.Yanked, raw) {
		return internal, graph.ReasonYanked
	}
	if !internal && s.opts.AvoidExternal {
		return internal, graph.ReasonExternalAvoided
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return internal, ""
	}
	if !internal || s.robots == nil {
		return internal, ""
	}
	if !s.robots.Allowed(ctx, u.Scheme, u.Host, u.RequestURI()) {
		return internal, graph.ReasonRobotsDisallowed
	}
	return internal, ""
}

// IsInternal reports whether u belongs to the checked site.
func (s *Site) IsInternal(u *url.URL) bool {
	if u.Opaque != "" {
		return false
	}
	if len(s.opts.Schemes) > 0 && !slices.Contains(s.opts.Schemes, u.Scheme) {
		return false
	}
	raw := u.String()
	var internal bool
	if s.opts.BaseURLsOnly {
		internal = slices.ContainsFunc(s.bases, func(base string) bool {
			return strings.HasPrefix(raw, base)
		})
	} else {
		_, internal = s.hosts[strings.ToLower(u.Host)]
	}
	return internal && !matchAny(s.opts.Excluded, raw)
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
