// Package database persists the link graph of a crawl in SQLite.
//
// The CrawlDB keeps one row per link plus tables for child and embed
// edges, link and page problems, defined anchors and requested anchors.
// Report plugins read from it; a continued crawl restores the graph from
// it with LoadGraph.
//
// modernc.org/sqlite is used as the driver, so no cgo is required.
package database
