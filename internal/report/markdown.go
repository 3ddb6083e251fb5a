package report

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// writeIndex writes the overview page linking the generated reports.
func (w *Writer) writeIndex(ctx context.Context, md *markdown.Markdown, src *Source, plugins []Plugin) error {
	overview, err := CollectOverview(ctx, src.DB)
	if err != nil {
		return err
	}

	w.writeHeader(md, src, overview)
	w.writeSummary(md, src, overview)

	md.H2("Reports")
	md.PlainText("")
	if len(plugins) == 0 {
		md.PlainText("No reports were generated.")
	} else {
		items := make([]string, 0, len(plugins))
		for _, p := range plugins {
			items = append(items, markdown.Link(p.Title(), p.Name()+".md"))
		}
		md.BulletList(items...)
	}
	md.PlainText("")

	w.writeFooter(md, src)
	return nil
}

// writeHeader writes the page title and the crawl information table.
func (w *Writer) writeHeader(md *markdown.Markdown, src *Source, o Overview) {
	md.H1("webcheck report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", escape(strings.Join(src.BaseURLs, ", "))},
			{"Generated", src.now().Format("2006-01-02 15:04:05 MST")},
			{"Links", strconv.Itoa(o.Links)},
			{"Internal pages", strconv.Itoa(o.Pages)},
			{"Duration", src.Stats.Duration.Round(time.Millisecond).String()},
			{"Status", statusText(src)},
		},
	})
	md.PlainText("")
}

// statusText returns the crawl status shown in reports.
func statusText(src *Source) string {
	if src.Stats.Cancelled {
		return "Interrupted (partial results)"
	}
	return "Complete"
}

// writeSummary writes the link status breakdown.
func (w *Writer) writeSummary(md *markdown.Markdown, src *Source, o Overview) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"OK", strconv.Itoa(o.OK())},
			{"Bad links", strconv.Itoa(o.BadLinks)},
			{"Not checked", strconv.Itoa(o.NotChecked)},
			{"Pages with problems", strconv.Itoa(o.PageProblems)},
		},
	})
	md.PlainText("")

	if o.Fetched > 0 || o.NotChecked > 0 {
		w.writePieChart(md, o)
	}
	w.writeAlert(md, src, o)
}

// writePieChart writes a mermaid pie chart of the link statuses.
func (w *Writer) writePieChart(md *markdown.Markdown, o Overview) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Status"),
		piechart.WithShowData(true),
	)
	if n := o.OK(); n > 0 {
		chart.LabelAndIntValue("OK", uint64(n))
	}
	if o.BadLinks > 0 {
		chart.LabelAndIntValue("Bad", uint64(o.BadLinks))
	}
	if o.NotChecked > 0 {
		chart.LabelAndIntValue("Not checked", uint64(o.NotChecked))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the state of the site.
func (w *Writer) writeAlert(md *markdown.Markdown, src *Source, o Overview) {
	switch {
	case src.Stats.Cancelled:
		md.Important("The crawl was interrupted. The reports only cover the links checked so far.")
	case o.BadLinks > 0:
		md.Warningf("%d bad link(s) found.", o.BadLinks)
	case o.PageProblems > 0:
		md.Notef("%d page(s) have problems.", o.PageProblems)
	default:
		md.Tip("No problems were found.")
	}
	md.PlainText("")
}

// writeFooter writes the page footer.
func (w *Writer) writeFooter(md *markdown.Markdown, src *Source) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [webcheck %s](https://github.com/nao1215/webcheck) on %s*",
		w.version, src.now().Format("2006-01-02 15:04"))
}
