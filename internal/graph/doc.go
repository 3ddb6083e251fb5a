// Package graph holds the link graph of a webcheck crawl.
//
// Every distinct normalized URL is one Link. Links are stored in an arena
// and addressed by LinkID; navigational ("child") and resource ("embed")
// edges are ID lists, and each Link keeps the list of its parents as the
// maintained inverse of those edges.
//
// # Redirects
//
// A redirect is a child edge from a Link with a non-zero RedirectDepth.
// ResolveRedirect walks such chains iteratively with a visited set, so
// loops and broken chains resolve to nil instead of recursing forever.
//
// # Depth pass
//
// After discovery has drained, ComputeDepths performs a breadth-first walk
// from the base URLs over the page children of each Link: navigational
// children resolved through redirects plus the page children of embedded
// resources. Embeds do not add a hop.
//
// # Concurrency
//
// A Graph is safe for concurrent use. Fetchers and parsers running on
// different goroutines change Links only through Graph methods.
package graph
