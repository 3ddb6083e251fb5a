package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/webcheck/internal/config"
	"github.com/nao1215/webcheck/internal/report"
)

// TestNewReportCmd tests the report command creation.
func TestNewReportCmd(t *testing.T) {
	t.Parallel()

	cmd := NewReportCmd()

	if cmd.Use != "report [URL...]" {
		t.Errorf("expected use 'report [URL...]', got %q", cmd.Use)
	}
	for _, name := range []string{"output", "config", "json", "plugins"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if cmd.Flags().Lookup("workers") != nil {
		t.Error("report must not take crawl flags")
	}
}

// TestRunReport tests regenerating reports from a stored crawl.
func TestRunReport(t *testing.T) {
	t.Parallel()

	t.Run("renders other plugins from the database", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		out := t.TempDir()

		cfg := config.NewConfig()
		cfg.BaseURLs = []string{server.URL + "/"}
		cfg.OutputDir = out
		cfg.YankedURLs = []string{`\.pdf$`}
		cfg.Plugins = []string{"badlinks"}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("invalid config: %v", err)
		}
		if err := runCrawl(context.Background(), cfg, discard, &bytes.Buffer{}); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(out, "images.md")); err == nil {
			t.Fatal("images report written by the crawl")
		}

		cfg.Plugins = []string{"images", "sitemap"}
		var buf bytes.Buffer
		if err := runReport(context.Background(), cfg, discard, &buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, name := range []string{"images.md", "sitemap.md", report.IndexFile} {
			if _, err := os.Stat(filepath.Join(out, name)); err != nil {
				t.Errorf("%s not written: %v", name, err)
			}
		}
		sitemap, err := os.ReadFile(filepath.Join(out, "sitemap.md"))
		if err != nil {
			t.Fatalf("failed to read site map: %v", err)
		}
		if !strings.Contains(string(sitemap), "About") {
			t.Errorf("site map misses the restored pages:\n%s", sitemap)
		}

		summary := buf.String()
		for _, want := range []string{"WEBCHECK SUMMARY", "BAD:          1", "Reports written to " + out} {
			if !strings.Contains(summary, want) {
				t.Errorf("summary does not contain %q:\n%s", want, summary)
			}
		}
	})

	t.Run("no database", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.BaseURLs = []string{"https://example.com/"}
		cfg.OutputDir = t.TempDir()

		if err := runReport(context.Background(), cfg, discard, &bytes.Buffer{}); err == nil {
			t.Error("expected an error without a stored crawl")
		}
	})
}
