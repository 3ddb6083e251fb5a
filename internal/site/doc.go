// Package site decides which URLs belong to the checked site and which
// must be skipped.
//
// A URL is internal when it shares a host with a base URL (or, with
// BaseURLsOnly, starts with one) and matches no excluded pattern. Skipped
// ("yanked") URLs carry the reason they were skipped: a yank pattern,
// avoided external links, or robots.txt.
package site
