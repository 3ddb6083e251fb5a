// Package crawler schedules the fetching and parsing of the links of a
// graph.Graph.
//
// # Architecture
//
// The Crawler keeps a FIFO queue of links in discovery order, seeded with
// the base URLs. A link is dispatched unless it is yanked or already
// fetched; the Fetcher registered for its scheme retrieves it and the Parser
// registered for its mime type feeds new children and embeds back into the
// graph, which are queued in turn.
//
//   - FetcherRegistry: scheme → Fetcher (http, https, ftp, file)
//   - ParserRegistry: mime type or "major/*" → Parser
//   - Crawler: bounded worker pool (errgroup) with a rate.Limiter between
//     fetch starts
//
// # Politeness
//
//   - robots.txt is honoured through the graph's classifier
//   - a minimum wait between requests (WithWait)
//   - a bounded number of concurrent requests (WithWorkers)
//
// # Usage
//
//	fetchers := crawler.NewFetcherRegistry()
//	fetchers.Register(scheme.NewHTTPFetcher(client), "http", "https")
//	parsers := crawler.NewParserRegistry()
//	parsers.Register(parser.NewHTMLParser(), "text/html")
//
//	c := crawler.New(fetchers, parsers, crawler.WithWait(time.Second))
//	stats, err := c.Crawl(ctx, g, []string{"http://example.com/"})
package crawler
