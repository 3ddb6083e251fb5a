package parser

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/webcheck/internal/graph"
)

// HTMLParser extracts links, embedded resources, anchors and metadata from
// HTML documents. Style sheets inside the document are handed to a
// CSSParser.
//
// It uses golang.org/x/net/html, which handles malformed markup the same
// way browsers do.
type HTMLParser struct {
	css *CSSParser
}

// NewHTMLParser creates an HTMLParser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{css: NewCSSParser()}
}

// document is the state of one Parse call.
type document struct {
	ctx  context.Context
	g    *graph.Graph
	link *graph.Link
	css  *CSSParser

	// base is where relative references resolve; <base href> changes it.
	base *url.URL

	title  string
	author string
}

// Parse marks link as a page and records everything found in content.
func (p *HTMLParser) Parse(ctx context.Context, g *graph.Graph, link *graph.Link, content []byte) error {
	base, err := url.Parse(link.URL)
	if err != nil {
		return err
	}

	contentType := "text/html"
	if link.Encoding != "" {
		contentType += "; charset=" + link.Encoding
	}
	r, err := charset.NewReader(bytes.NewReader(content), contentType)
	if err != nil {
		return fmt.Errorf("failed to decode page: %w", err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	d := &document{ctx: ctx, g: g, link: link, css: p.css, base: base}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.processElement(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	g.Update(link, func(l *graph.Link) {
		l.IsPage = true
		if l.Title == "" {
			l.Title = d.title
		}
		if l.Author == "" {
			l.Author = d.author
		}
	})
	return nil
}

// processElement handles HTML element nodes.
func (d *document) processElement(n *html.Node) {
	id := getAttr(n, "id")
	if id != "" {
		d.g.AddAnchor(d.link, id)
	}
	if style := getAttr(n, "style"); style != "" {
		d.css.parse(d.ctx, d.g, d.link, d.base, style)
	}

	switch n.DataAtom {
	case atom.Title:
		if d.title == "" {
			d.title = strings.Join(strings.Fields(textContent(n)), " ")
		}

	case atom.Base:
		if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
			if u, err := url.Parse(href); err == nil {
				d.base = d.base.ResolveReference(u)
			}
		}

	case atom.Meta:
		d.processMeta(n)

	case atom.A:
		// <a id="x" name="x"> defines x once.
		if name := getAttr(n, "name"); name != "" && !strings.EqualFold(name, id) {
			d.g.AddAnchor(d.link, name)
		}
		d.addChild(getAttr(n, "href"))

	case atom.Area:
		d.addChild(getAttr(n, "href"))

	case atom.Img, atom.Script, atom.Iframe, atom.Frame, atom.Embed, atom.Source:
		d.addEmbed(getAttr(n, "src"))

	case atom.Object:
		d.addEmbed(getAttr(n, "data"))

	case atom.Link:
		href := getAttr(n, "href")
		if isEmbeddedRel(getAttr(n, "rel")) {
			d.addEmbed(href)
		} else {
			d.addChild(href)
		}

	case atom.Style:
		d.css.parse(d.ctx, d.g, d.link, d.base, textContent(n))
	}
}

// processMeta handles author, character set and refresh meta tags.
func (d *document) processMeta(n *html.Node) {
	if cs := getAttr(n, "charset"); cs != "" {
		d.g.SetEncoding(d.link, cs)
	}
	content := getAttr(n, "content")

	if strings.EqualFold(getAttr(n, "name"), "author") && d.author == "" {
		d.author = strings.TrimSpace(content)
	}

	switch strings.ToLower(getAttr(n, "http-equiv")) {
	case "content-type":
		if _, params, err := mime.ParseMediaType(content); err == nil && params["charset"] != "" {
			d.g.SetEncoding(d.link, params["charset"])
		}
	case "refresh":
		if target := refreshURL(content); target != "" {
			d.addChild(target)
		}
	}
}

func (d *document) addChild(ref string) {
	addResolved(d.ctx, d.g, d.link, d.base, ref, d.g.AddChild)
}

func (d *document) addEmbed(ref string) {
	addResolved(d.ctx, d.g, d.link, d.base, ref, d.g.AddEmbed)
}

// addResolved resolves ref against base and records it with add.
// References back to the page itself only record the requested anchor.
func addResolved(ctx context.Context, g *graph.Graph, link *graph.Link, base *url.URL, ref string,
	add func(context.Context, *graph.Link, string) error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return
	}

	u, err := url.Parse(ref)
	if err != nil {
		g.AddPageProblem(link, "bad link: "+ref)
		return
	}
	target := base.ResolveReference(u)

	if key, err := graph.Key(target.String()); err == nil && key == link.URL {
		if target.Fragment != "" {
			g.AddRequestedAnchor(link, link, target.Fragment)
		}
		return
	}
	if err := add(ctx, link, target.String()); err != nil {
		g.AddPageProblem(link, "bad link: "+ref)
	}
}

// refreshURL extracts the target of a meta refresh such as
// "5; url=http://example.com/".
func refreshURL(content string) string {
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 4 && strings.EqualFold(part[:4], "url=") {
			return strings.Trim(strings.TrimSpace(part[4:]), `"'`)
		}
	}
	return ""
}

// isEmbeddedRel reports whether a <link rel> value loads a resource into
// the page rather than pointing to another document.
func isEmbeddedRel(rel string) bool {
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		switch r {
		case "stylesheet", "icon", "apple-touch-icon", "preload":
			return true
		}
	}
	return false
}

// textContent concatenates the text nodes below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
