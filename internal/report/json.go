package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/webcheck/internal/database"
)

// JSONWriter exports the link table as JSON for tool integration.
type JSONWriter struct {
	output io.Writer

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{output: output}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	// Version is the webcheck version that generated this report.
	Version string `json:"version"`

	Generated time.Time `json:"generated"`
	BaseURLs  []string  `json:"base_urls"`
	Cancelled bool      `json:"cancelled,omitempty"`

	Links []JSONLink `json:"links"`
}

// JSONLink is one link of the export.
type JSONLink struct {
	URL           string     `json:"url"`
	Internal      bool       `json:"internal"`
	Yanked        string     `json:"yanked,omitempty"`
	Fetched       bool       `json:"fetched"`
	Status        string     `json:"status,omitempty"`
	MimeType      string     `json:"mimetype,omitempty"`
	Encoding      string     `json:"encoding,omitempty"`
	Size          int64      `json:"size,omitempty"`
	Mtime         *time.Time `json:"mtime,omitempty"`
	Title         string     `json:"title,omitempty"`
	Author        string     `json:"author,omitempty"`
	Depth         int        `json:"depth"`
	RedirectDepth int        `json:"redirect_depth,omitempty"`
	IsPage        bool       `json:"is_page"`
	Children      []string   `json:"children,omitempty"`
	Embedded      []string   `json:"embedded,omitempty"`
	LinkProblems  []string   `json:"link_problems,omitempty"`
	PageProblems  []string   `json:"page_problems,omitempty"`
	Anchors       []string   `json:"anchors,omitempty"`
}

// Write exports every stored link in discovery order.
// It returns the number of bytes written.
func (w *JSONWriter) Write(ctx context.Context, src *Source, version string) (int, error) {
	records, err := src.DB.Links(ctx, database.LinkFilter{OrderBy: database.OrderByID})
	if err != nil {
		return 0, err
	}

	report := JSONReport{
		Version:   version,
		Generated: src.now().UTC(),
		BaseURLs:  src.BaseURLs,
		Cancelled: src.Stats.Cancelled,
		Links:     make([]JSONLink, 0, len(records)),
	}
	for _, r := range records {
		link, err := jsonLink(ctx, src.DB, r)
		if err != nil {
			return 0, err
		}
		report.Links = append(report.Links, link)
	}
	return w.writeJSON(report)
}

func jsonLink(ctx context.Context, db *database.CrawlDB, r *database.LinkRecord) (JSONLink, error) {
	link := JSONLink{
		URL:           r.URL,
		Internal:      r.IsInternal,
		Yanked:        r.Yanked,
		Fetched:       r.IsFetched,
		Status:        r.Status,
		MimeType:      r.MimeType,
		Encoding:      r.Encoding,
		Size:          r.Size,
		Title:         r.Title,
		Author:        r.Author,
		Depth:         r.Depth,
		RedirectDepth: r.RedirectDepth,
		IsPage:        r.IsPage,
	}
	if !r.Mtime.IsZero() {
		mtime := r.Mtime
		link.Mtime = &mtime
	}

	children, err := db.Children(ctx, r.ID)
	if err != nil {
		return link, err
	}
	link.Children = recordURLs(children)
	embedded, err := db.Embedded(ctx, r.ID)
	if err != nil {
		return link, err
	}
	link.Embedded = recordURLs(embedded)

	if link.LinkProblems, err = db.LinkProblems(ctx, r.ID); err != nil {
		return link, err
	}
	if link.PageProblems, err = db.PageProblems(ctx, r.ID); err != nil {
		return link, err
	}
	if link.Anchors, err = db.Anchors(ctx, r.ID); err != nil {
		return link, err
	}
	return link, nil
}

func recordURLs(records []*database.LinkRecord) []string {
	if len(records) == 0 {
		return nil
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.URL)
	}
	return out
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
