package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/webcheck/internal/config"
	"github.com/nao1215/webcheck/internal/crawler"
	"github.com/nao1215/webcheck/internal/database"
)

// newTestSite serves a small site: the home page links to a page with an
// anchor it does not define and to a missing page.
func newTestSite(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			if hits != nil {
				hits.Add(1)
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, body)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", page(`<html><head><title>Home</title></head><body>
<a href="a.html#nowhere">A</a> <a href="missing.html">gone</a></body></html>`))
	mux.HandleFunc("GET /a.html", page(`<html><head><title>A</title></head><body>
<a href="/">home</a></body></html>`))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newTestSession opens a database in a temporary output directory and
// builds a session crawling baseURL.
func newTestSession(t *testing.T, outputDir, baseURL string, modify func(*config.Config)) *Session {
	t.Helper()

	cfg := config.NewConfig()
	cfg.BaseURLs = []string{baseURL}
	cfg.OutputDir = outputDir
	if modify != nil {
		modify(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}

	db, err := database.Open(outputDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sess, err := NewSession(cfg, db, discard)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess
}

// TestDefaultPipeline_Execute runs a complete session against a local site.
func TestDefaultPipeline_Execute(t *testing.T) {
	t.Parallel()

	server := newTestSite(t, nil)
	out := t.TempDir()
	sess := newTestSession(t, out, server.URL+"/", nil)

	if err := DefaultPipeline(discard, "1.2.3").Execute(context.Background(), sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"crawl", "depth", "anchors", "persist", "report"}
	if !slices.Equal(sess.PerformedSteps, want) {
		t.Errorf("expected steps %v, got %v", want, sess.PerformedSteps)
	}
	if sess.Stats.Fetched != 3 {
		t.Errorf("expected 3 fetched links, got %d", sess.Stats.Fetched)
	}
	if len(sess.Roots) != 1 || sess.Roots[0].URL != server.URL+"/" {
		t.Errorf("unexpected roots %v", sess.Roots)
	}

	ctx := context.Background()
	missing, err := sess.DB.LinkByURL(ctx, server.URL+"/missing.html")
	if err != nil || missing == nil {
		t.Fatalf("missing page not stored: %v", err)
	}
	problems, err := sess.DB.LinkProblems(ctx, missing.ID)
	if err != nil {
		t.Fatalf("failed to read link problems: %v", err)
	}
	if len(problems) != 1 || !strings.Contains(problems[0], "404") {
		t.Errorf("expected a 404 link problem, got %v", problems)
	}

	home, err := sess.DB.LinkByURL(ctx, server.URL+"/")
	if err != nil || home == nil {
		t.Fatalf("home page not stored: %v", err)
	}
	if home.Title != "Home" || home.Depth != 0 {
		t.Errorf("unexpected home record %+v", home)
	}
	pageProblems, err := sess.DB.PageProblems(ctx, home.ID)
	if err != nil {
		t.Fatalf("failed to read page problems: %v", err)
	}
	if len(pageProblems) != 1 || !strings.Contains(pageProblems[0], "a.html#nowhere: unknown anchor") {
		t.Errorf("expected an unknown anchor problem, got %v", pageProblems)
	}

	for _, name := range []string{"index.md", "sitemap.md", "badlinks.md"} {
		path := filepath.Join(out, name)
		if !slices.Contains(sess.Reports, path) {
			t.Errorf("%s not listed in reports %v", name, sess.Reports)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, database.FileName)); err != nil {
		t.Errorf("database not written: %v", err)
	}
}

// TestCrawlStep tests the crawl step on its own.
func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("continue fetches nothing twice", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newTestSite(t, &hits)
		out := t.TempDir()

		first := newTestSession(t, out, server.URL+"/", nil)
		p := New(WithLogger(discard))
		p.AddSteps(NewCrawlStep(WithCrawlLogger(discard)), NewPersistStep(discard))
		if err := p.Execute(context.Background(), first); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if hits.Load() != 2 {
			t.Fatalf("expected 2 page hits, got %d", hits.Load())
		}

		second := newTestSession(t, out, server.URL+"/", func(c *config.Config) {
			c.Continue = true
		})
		if err := NewCrawlStep(WithCrawlLogger(discard)).Do(context.Background(), second); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if second.Stats.Fetched != 0 {
			t.Errorf("expected no fetches, got %d", second.Stats.Fetched)
		}
		if hits.Load() != 2 {
			t.Errorf("pages fetched again: %d hits", hits.Load())
		}
		if second.Graph.Len() != first.Graph.Len() {
			t.Errorf("expected %d restored links, got %d", first.Graph.Len(), second.Graph.Len())
		}
	})

	t.Run("without continue the database is cleared", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t, nil)
		out := t.TempDir()

		first := newTestSession(t, out, server.URL+"/", nil)
		if err := NewCrawlStep(WithCrawlLogger(discard)).Do(context.Background(), first); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if err := NewPersistStep(discard).Do(context.Background(), first); err != nil {
			t.Fatalf("persist failed: %v", err)
		}

		second := newTestSession(t, out, server.URL+"/", func(c *config.Config) {
			c.Schemes = []string{"file"}
		})
		if err := NewCrawlStep(WithCrawlLogger(discard)).Do(context.Background(), second); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if second.Stats.Fetched != 0 {
			t.Errorf("expected no fetches, got %d", second.Stats.Fetched)
		}
		n, err := second.DB.Count(context.Background(), database.LinkFilter{})
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected an empty database, got %d links", n)
		}
	})

	t.Run("unusable base URL", func(t *testing.T) {
		t.Parallel()

		sess := newTestSession(t, t.TempDir(), "http://127.0.0.1:1/", nil)
		sess.Config.BaseURLs = []string{"http://[::1"}

		err := NewCrawlStep(WithCrawlLogger(discard)).Do(context.Background(), sess)
		if !errors.Is(err, crawler.ErrNoBaseURL) {
			t.Errorf("expected ErrNoBaseURL, got %v", err)
		}
	})
}

// TestNewFetchers tests that only enabled schemes get a fetcher.
func TestNewFetchers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		schemes []string
		want    []string
	}{
		{name: "defaults", schemes: config.DefaultSchemes(), want: []string{"file", "ftp", "http", "https"}},
		{name: "http only", schemes: []string{"http"}, want: []string{"http"}},
		{name: "local files", schemes: []string{"file"}, want: []string{"file"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			cfg.Schemes = tt.schemes

			fetchers, err := NewFetchers(cfg, http.DefaultClient)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := fetchers.Schemes()
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("bad ftp proxy", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Proxies = map[string]string{"ftp": "gopher://proxy:70"}

		if _, err := NewFetchers(cfg, http.DefaultClient); err == nil {
			t.Error("expected an error")
		}
	})
}

// TestNewParsers tests the mime type registrations.
func TestNewParsers(t *testing.T) {
	t.Parallel()

	parsers := NewParsers()
	for _, mimeType := range []string{"text/html", "application/xhtml+xml", "text/css", "image/jpeg"} {
		if _, ok := parsers.Lookup(mimeType); !ok {
			t.Errorf("no parser for %s", mimeType)
		}
	}
	if _, ok := parsers.Lookup("application/pdf"); ok {
		t.Error("unexpected parser for application/pdf")
	}
}
