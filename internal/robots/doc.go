// Package robots provides the robots.txt policy cache used by webcheck.
//
// Rules are parsed with github.com/temoto/robotstxt and memoized per
// scheme and host for the lifetime of a crawl. Duplicate fetches for the
// same host are collapsed with golang.org/x/sync/singleflight.
package robots
