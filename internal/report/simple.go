package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/webcheck/internal/database"
)

// SummaryWriter prints a plain text crawl summary for terminal display.
type SummaryWriter struct {
	output io.Writer

	// verbose also lists every bad link.
	verbose bool
}

// SummaryWriterOption configures a SummaryWriter.
type SummaryWriterOption func(*SummaryWriter)

// WithVerbose lists every bad link in the summary.
func WithVerbose(verbose bool) SummaryWriterOption {
	return func(w *SummaryWriter) {
		w.verbose = verbose
	}
}

// NewSummaryWriter creates a SummaryWriter that outputs to the given writer.
func NewSummaryWriter(output io.Writer, opts ...SummaryWriterOption) *SummaryWriter {
	w := &SummaryWriter{output: output}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write prints the summary of src. reportDir is where the reports were
// written, empty when none were.
func (w *SummaryWriter) Write(ctx context.Context, src *Source, reportDir string) (int, error) {
	overview, err := CollectOverview(ctx, src.DB)
	if err != nil {
		return 0, err
	}

	var sb strings.Builder
	w.writeHeader(&sb, src)
	w.writeCounts(&sb, overview)
	if w.verbose && overview.BadLinks > 0 {
		if err := w.writeBadLinks(ctx, &sb, src.DB); err != nil {
			return 0, err
		}
	}
	w.writeFooter(&sb, reportDir)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the summary header with crawl information.
func (w *SummaryWriter) writeHeader(sb *strings.Builder, src *Source) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         WEBCHECK SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Base URL:  %s\n", strings.Join(src.BaseURLs, ", "))
	fmt.Fprintf(sb, "Duration:  %s\n", src.Stats.Duration.Round(time.Millisecond))
	if src.Stats.Cancelled {
		sb.WriteString("Status:    INTERRUPTED (partial results)\n")
	} else {
		sb.WriteString("Status:    Complete\n")
	}
	sb.WriteString("\n")
}

// writeCounts writes the link counts.
func (w *SummaryWriter) writeCounts(sb *strings.Builder, o Overview) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("LINKS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  TOTAL:        %d\n", o.Links)
	fmt.Fprintf(sb, "  INTERNAL:     %d\n", o.Internal)
	fmt.Fprintf(sb, "  PAGES:        %d\n", o.Pages)
	fmt.Fprintf(sb, "  OK:           %d\n", o.OK())
	fmt.Fprintf(sb, "  BAD:          %d\n", o.BadLinks)
	fmt.Fprintf(sb, "  NOT CHECKED:  %d\n", o.NotChecked)
	fmt.Fprintf(sb, "  PROBLEMS:     %d page(s)\n", o.PageProblems)
	sb.WriteString("\n")
}

// writeBadLinks lists every link with a link problem.
func (w *SummaryWriter) writeBadLinks(ctx context.Context, sb *strings.Builder, db *database.CrawlDB) error {
	links, err := db.Links(ctx, database.LinkFilter{HasLinkProblems: database.Bool(true)})
	if err != nil {
		return err
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("BAD LINKS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
	for _, l := range links {
		problems, err := db.LinkProblems(ctx, l.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "  [!] %s\n", l.URL)
		for _, p := range problems {
			fmt.Fprintf(sb, "      %s\n", p)
		}
	}
	sb.WriteString("\n")
	return nil
}

// writeFooter writes the summary footer.
func (w *SummaryWriter) writeFooter(sb *strings.Builder, reportDir string) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	if reportDir != "" {
		fmt.Fprintf(sb, "Reports written to %s\n", reportDir)
		sb.WriteString(strings.Repeat("=", 70))
		sb.WriteString("\n")
	}
}
