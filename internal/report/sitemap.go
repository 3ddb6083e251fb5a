package report

import (
	"context"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webcheck/internal/graph"
)

// SitemapPlugin shows the page hierarchy below the base URLs.
type SitemapPlugin struct{}

// Name implements Plugin.
func (p *SitemapPlugin) Name() string { return "sitemap" }

// Title implements Plugin.
func (p *SitemapPlugin) Title() string { return "Site map" }

// Generate implements Plugin. Every page is listed once, below the first
// page that reaches it; the walk stops at the configured level.
func (p *SitemapPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	if src.Graph == nil || len(src.Roots) == 0 {
		md.PlainText("No pages were found.")
		return nil
	}

	explored := make(map[graph.LinkID]struct{}, len(src.Roots))
	for _, root := range src.Roots {
		explored[root.ID] = struct{}{}
	}

	var lines []string
	var walk func(l *graph.Link, level int)
	walk = func(l *graph.Link, level int) {
		lines = append(lines, strings.Repeat("  ", level)+"- "+markdown.Link(escape(graphTitle(l)), l.URL))
		if level+1 >= src.Settings.SitemapLevel {
			return
		}
		// Children are claimed before descending so siblings win over
		// deeper references.
		var next []*graph.Link
		for _, child := range src.Graph.PageChildren(l) {
			if _, ok := explored[child.ID]; ok {
				continue
			}
			explored[child.ID] = struct{}{}
			next = append(next, child)
		}
		for _, child := range next {
			walk(child, level+1)
		}
	}
	for _, root := range src.Roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		walk(root, 0)
	}

	md.PlainText(strings.Join(lines, "\n"))
	return nil
}

func graphTitle(l *graph.Link) string {
	if l.Title != "" {
		return l.Title
	}
	return l.URL
}
