package report

import (
	"context"
	"sort"
	"strings"

	"github.com/nao1215/markdown"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/webcheck/internal/database"
)

// BadLinksPlugin lists links that could not be retrieved, with the pages
// referring to them.
type BadLinksPlugin struct{}

// Name implements Plugin.
func (p *BadLinksPlugin) Name() string { return "badlinks" }

// Title implements Plugin.
func (p *BadLinksPlugin) Title() string { return "Bad links" }

// Generate implements Plugin.
func (p *BadLinksPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	links, err := src.DB.Links(ctx, database.LinkFilter{HasLinkProblems: database.Bool(true)})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		md.Tip("No bad links were found.")
		return nil
	}

	rows := make([][]string, 0, len(links))
	for _, l := range links {
		problems, err := src.DB.LinkProblems(ctx, l.ID)
		if err != nil {
			return err
		}
		parents, err := src.DB.Parents(ctx, l.ID)
		if err != nil {
			return err
		}
		refs := make([]string, 0, len(parents))
		for _, parent := range parents {
			refs = append(refs, linkText(parent))
		}
		rows = append(rows, []string{
			markdown.Link(escape(l.URL), l.URL),
			escape(strings.Join(problems, "; ")),
			strings.Join(refs, "<br>"),
		})
	}

	md.Warningf("%d bad link(s) found.", len(links))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Link", "Problem", "Referenced from"},
		Rows:   rows,
	})
	return nil
}

// ImagesPlugin lists the images the site uses.
type ImagesPlugin struct{}

// Name implements Plugin.
func (p *ImagesPlugin) Name() string { return "images" }

// Title implements Plugin.
func (p *ImagesPlugin) Title() string { return "Images" }

// Generate implements Plugin.
func (p *ImagesPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	links, err := src.DB.Links(ctx, database.LinkFilter{MimePrefix: "image/"})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		md.PlainText("No images were found.")
		return nil
	}

	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{linkText(l), l.MimeType, formatSize(l.Size), escape(l.Author)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Image", "Type", "Size", "Author"},
		Rows:   rows,
	})
	return nil
}

// ExternalPlugin lists the links leaving the site, grouped by registrable
// domain.
type ExternalPlugin struct{}

// Name implements Plugin.
func (p *ExternalPlugin) Name() string { return "external" }

// Title implements Plugin.
func (p *ExternalPlugin) Title() string { return "External links" }

// Generate implements Plugin.
func (p *ExternalPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	links, err := src.DB.Links(ctx, database.LinkFilter{
		IsInternal: database.Bool(false),
		IsYanked:   database.Bool(false),
	})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		md.PlainText("No external links were found.")
		return nil
	}

	groups := make(map[string][]*database.LinkRecord)
	for _, l := range links {
		d := domainOf(l)
		groups[d] = append(groups[d], l)
	}
	domains := make([]string, 0, len(groups))
	for d := range groups {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	md.PlainTextf("%d external link(s) to %d domain(s).", len(links), len(domains))
	md.PlainText("")
	for _, d := range domains {
		md.H2(d)
		md.PlainText("")
		rows := make([][]string, 0, len(groups[d]))
		for _, l := range groups[d] {
			rows = append(rows, []string{linkText(l), escape(l.Status)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Link", "Status"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	return nil
}

// domainOf returns the registrable domain of a link, falling back to the
// host or the scheme for links that have none.
func domainOf(l *database.LinkRecord) string {
	host := l.Host
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	if host == "" {
		return l.Scheme
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// NotCheckedPlugin lists links that were not checked, with the reason.
type NotCheckedPlugin struct{}

// Name implements Plugin.
func (p *NotCheckedPlugin) Name() string { return "notchkd" }

// Title implements Plugin.
func (p *NotCheckedPlugin) Title() string { return "Not checked" }

// Generate implements Plugin.
func (p *NotCheckedPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	links, err := src.DB.Links(ctx, database.LinkFilter{IsYanked: database.Bool(true)})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		md.PlainText("All links have been checked.")
		return nil
	}

	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{markdown.Link(escape(l.URL), l.URL), escape(l.Yanked)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Link", "Reason"},
		Rows:   rows,
	})
	return nil
}
