// Package report renders the results of a crawl.
//
// Each Plugin produces one Markdown page from the stored link graph:
//
//   - sitemap: the page hierarchy below the base URLs
//   - badlinks: links that could not be retrieved
//   - images: images used by the site
//   - old, new: pages by modification time
//   - slow: pages that are large including their embedded resources
//   - notitles: pages without a title
//   - external: links leaving the site, by registrable domain
//   - notchkd: links that were not checked, with the reason
//   - problems: problems found on pages, by author
//
// Writer writes the selected plugins plus an index page, and optionally a
// JSON export of the link table. SummaryWriter prints a short text summary
// for the terminal.
package report
