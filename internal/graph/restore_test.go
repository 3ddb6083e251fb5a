package graph

import (
	"slices"
	"testing"
	"time"
)

func TestGraph_Restore(t *testing.T) {
	t.Parallel()

	t.Run("keeps stored fields and resets depth", func(t *testing.T) {
		t.Parallel()

		g := newTestGraph(t)
		mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		l := g.Restore(Link{
			ID:           42,
			URL:          "http://example.com/a.html",
			Scheme:       "http",
			Host:         "example.com",
			Path:         "/a.html",
			IsInternal:   true,
			IsFetched:    true,
			Status:       "200 OK",
			MimeType:     "text/html",
			Mtime:        mtime,
			Depth:        3,
			IsPage:       true,
			PageProblems: []string{"unknown encoding: klingon"},
			Anchors:      []string{"top"},
		})

		if l.ID != 0 {
			t.Errorf("expected a fresh ID 0, got %d", l.ID)
		}
		if l.Depth != NoDepth {
			t.Errorf("expected depth to be reset, got %d", l.Depth)
		}
		if !l.IsFetched || l.Status != "200 OK" || !l.Mtime.Equal(mtime) {
			t.Errorf("stored fields were not kept: %+v", l)
		}
		if got := g.Lookup("http://example.com/a.html"); got != l {
			t.Error("expected the restored link to be indexed")
		}
		if again := g.Restore(Link{URL: l.URL}); again != l {
			t.Error("expected restoring a known URL to return the existing link")
		}
	})

	t.Run("edges and anchors can be rebuilt", func(t *testing.T) {
		t.Parallel()

		g := newTestGraph(t)
		home := g.Restore(Link{URL: "http://example.com/", IsInternal: true, IsFetched: true, IsPage: true})
		doc := g.Restore(Link{URL: "http://example.com/doc.html", IsInternal: true, IsFetched: true, IsPage: true})
		css := g.Restore(Link{URL: "http://example.com/site.css", IsInternal: true})

		g.RestoreChild(home, doc)
		g.RestoreEmbed(home, css)
		g.AddRequestedAnchor(doc, home, "missing")

		if got := urls(g.Discovered(home)); !slices.Equal(got, []string{doc.URL, css.URL}) {
			t.Errorf("unexpected discovered links %v", got)
		}
		if got := urls(g.Parents(doc)); !slices.Equal(got, []string{home.URL}) {
			t.Errorf("unexpected parents %v", got)
		}

		roots := g.ComputeDepths([]string{home.URL})
		if len(roots) != 1 || doc.Depth != 1 {
			t.Errorf("expected doc at depth 1 below one root, got depth %d and %d roots", doc.Depth, len(roots))
		}
		if n := g.CheckAnchors(); n != 1 {
			t.Errorf("expected one unknown anchor, got %d", n)
		}
	})
}
