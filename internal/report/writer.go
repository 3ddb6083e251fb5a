package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webcheck/internal/database"
)

// IndexFile is the name of the overview page linking all reports.
const IndexFile = "index.md"

// JSONFile is the name of the JSON export of the link table.
const JSONFile = "webcheck.json"

// Writer renders report plugins into Markdown files in one directory:
// one <name>.md per plugin plus an index page.
type Writer struct {
	dir     string
	plugins []Plugin
	logger  *slog.Logger
	version string
	json    bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithVersion sets the version printed in page footers and the JSON export.
func WithVersion(version string) WriterOption {
	return func(w *Writer) {
		w.version = version
	}
}

// WithJSON enables the JSON export of the link table.
func WithJSON(enabled bool) WriterOption {
	return func(w *Writer) {
		w.json = enabled
	}
}

// NewWriter creates a Writer for the given plugins.
func NewWriter(dir string, plugins []Plugin, opts ...WriterOption) *Writer {
	w := &Writer{
		dir:     dir,
		plugins: plugins,
		version: "dev",
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Write generates every report and returns the paths of the written files.
//
// A failing plugin does not stop the others; its error is included in the
// returned error.
func (w *Writer) Write(ctx context.Context, src *Source) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var written []string
	var errs []error
	var done []Plugin
	for _, p := range w.plugins {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := filepath.Join(w.dir, p.Name()+".md")
		err := writeFile(path, func(md *markdown.Markdown) error {
			md.H1(p.Title())
			md.PlainText("")
			if err := p.Generate(ctx, src, md); err != nil {
				return err
			}
			md.PlainText("")
			w.writeFooter(md, src)
			return nil
		})
		if err != nil {
			w.logger.Error("report failed", "plugin", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s report: %w", p.Name(), err))
			continue
		}
		w.logger.Debug("report written", "plugin", p.Name(), "path", path)
		written = append(written, path)
		done = append(done, p)
	}

	index := filepath.Join(w.dir, IndexFile)
	if err := writeFile(index, func(md *markdown.Markdown) error {
		return w.writeIndex(ctx, md, src, done)
	}); err != nil {
		errs = append(errs, fmt.Errorf("index: %w", err))
	} else {
		written = append(written, index)
	}

	if w.json {
		path := filepath.Join(w.dir, JSONFile)
		if err := w.writeJSON(ctx, path, src); err != nil {
			errs = append(errs, fmt.Errorf("json export: %w", err))
		} else {
			written = append(written, path)
		}
	}

	return written, errors.Join(errs...)
}

func (w *Writer) writeJSON(ctx context.Context, path string, src *Source) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = NewJSONWriter(f, WithPrettyPrint()).Write(ctx, src, w.version)
	return err
}

// writeFile creates path and writes the Markdown built by build to it.
func writeFile(path string, build func(*markdown.Markdown) error) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	md := markdown.NewMarkdown(f)
	if err := build(md); err != nil {
		return err
	}
	return md.Build()
}

// Overview holds the link counts shown on the index page and the terminal
// summary.
type Overview struct {
	Links        int
	Internal     int
	Pages        int
	Fetched      int
	BadLinks     int
	NotChecked   int
	PageProblems int
}

// OK returns the number of fetched links without link problems.
func (o Overview) OK() int {
	return max(o.Fetched-o.BadLinks, 0)
}

// CollectOverview counts the stored links.
func CollectOverview(ctx context.Context, db *database.CrawlDB) (Overview, error) {
	var o Overview
	counts := []struct {
		dst    *int
		filter database.LinkFilter
	}{
		{&o.Links, database.LinkFilter{}},
		{&o.Internal, database.LinkFilter{IsInternal: database.Bool(true)}},
		{&o.Pages, internalPages()},
		{&o.Fetched, database.LinkFilter{IsFetched: database.Bool(true)}},
		{&o.BadLinks, database.LinkFilter{HasLinkProblems: database.Bool(true)}},
		{&o.NotChecked, database.LinkFilter{IsYanked: database.Bool(true)}},
		{&o.PageProblems, database.LinkFilter{IsInternal: database.Bool(true), HasPageProblems: database.Bool(true)}},
	}
	for _, c := range counts {
		n, err := db.Count(ctx, c.filter)
		if err != nil {
			return Overview{}, err
		}
		*c.dst = n
	}
	return o, nil
}
