package parser

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/nao1215/webcheck/internal/graph"
)

var (
	cssCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cssImportPattern  = regexp.MustCompile(`(?is)@import\s+["']([^"']*)["']`)
	cssURLPattern     = regexp.MustCompile(`(?i)url\(\s*["']?(.*?)["']?\s*\)`)
)

// CSSParser extracts the resources referenced by style sheets: @import
// rules and url() values become embeds of the style sheet.
type CSSParser struct{}

// NewCSSParser creates a CSSParser.
func NewCSSParser() *CSSParser {
	return &CSSParser{}
}

// Parse records the references found in content as embeds of link.
func (p *CSSParser) Parse(ctx context.Context, g *graph.Graph, link *graph.Link, content []byte) error {
	base, err := url.Parse(link.URL)
	if err != nil {
		return err
	}
	p.parse(ctx, g, link, base, string(content))
	return nil
}

// parse handles style sheet text found in a document whose references
// resolve against base. HTML pages call it for <style> blocks and style
// attributes.
func (p *CSSParser) parse(ctx context.Context, g *graph.Graph, link *graph.Link, base *url.URL, css string) {
	css = cssCommentPattern.ReplaceAllString(css, "")
	for _, m := range cssImportPattern.FindAllStringSubmatch(css, -1) {
		addResolved(ctx, g, link, base, m[1], g.AddEmbed)
	}
	for _, m := range cssURLPattern.FindAllStringSubmatch(css, -1) {
		ref := strings.TrimSpace(m[1])
		if strings.HasPrefix(strings.ToLower(ref), "data:") {
			continue
		}
		addResolved(ctx, g, link, base, ref, g.AddEmbed)
	}
}
