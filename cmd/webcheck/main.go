// Package main provides the entry point for the webcheck CLI.
//
// webcheck crawls a website, checks every link it finds and writes
// Markdown reports about broken links, old and new pages, missing titles
// and other problems.
//
// Usage:
//
//	webcheck crawl https://example.com/
//	webcheck report https://example.com/
//
// See --help for all available options.
package main

// main is the entry point for webcheck.
func main() {
	Execute()
}
