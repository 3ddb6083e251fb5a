package parser

import (
	"context"
	"encoding/binary"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/webcheck/internal/graph"
)

func newGraph() *graph.Graph {
	return graph.New(graph.ClassifierFunc(func(_ context.Context, u *url.URL) (bool, string) {
		return u.Host == "example.com", ""
	}))
}

func mustLink(t *testing.T, g *graph.Graph, raw string) *graph.Link {
	t.Helper()
	l, err := g.GetOrCreate(context.Background(), raw)
	if err != nil {
		t.Fatalf("GetOrCreate(%q): %v", raw, err)
	}
	return l
}

func urls(links []*graph.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.URL)
	}
	return out
}

// TestHTMLParser tests HTML parsing functionality.
func TestHTMLParser(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, page string) (*graph.Graph, *graph.Link) {
		t.Helper()
		g := newGraph()
		link := mustLink(t, g, "http://example.com/dir/page.html")
		if err := NewHTMLParser().Parse(context.Background(), g, link, []byte(page)); err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		return g, link
	}

	t.Run("extracts title and author", func(t *testing.T) {
		t.Parallel()

		_, link := parse(t, `<html><head><title>
			Test   Page
		</title><meta name="Author" content="Jane Doe"></head><body></body></html>`)

		if link.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", link.Title)
		}
		if link.Author != "Jane Doe" {
			t.Errorf("expected author 'Jane Doe', got %q", link.Author)
		}
		if !link.IsPage {
			t.Error("expected link to be marked as page")
		}
	})

	t.Run("separates children from embeds", func(t *testing.T) {
		t.Parallel()

		g, link := parse(t, `<html><head>
			<link rel="stylesheet" href="/style.css">
			<link rel="next" href="next.html">
			<script src="app.js"></script>
		</head><body>
			<a href="a.html">A</a>
			<a href="http://other.com/">Other</a>
			<map><area href="/area.html"></map>
			<img src="../img/logo.png">
			<iframe src="frame.html"></iframe>
			<object data="movie.swf"></object>
		</body></html>`)

		wantChildren := []string{
			"http://example.com/dir/next.html",
			"http://example.com/dir/a.html",
			"http://other.com/",
			"http://example.com/area.html",
		}
		if got := urls(g.Children(link)); !slices.Equal(got, wantChildren) {
			t.Errorf("children:\n got %v\nwant %v", got, wantChildren)
		}
		wantEmbeds := []string{
			"http://example.com/style.css",
			"http://example.com/dir/app.js",
			"http://example.com/img/logo.png",
			"http://example.com/dir/frame.html",
			"http://example.com/dir/movie.swf",
		}
		if got := urls(g.Embedded(link)); !slices.Equal(got, wantEmbeds) {
			t.Errorf("embeds:\n got %v\nwant %v", got, wantEmbeds)
		}
	})

	t.Run("base href changes resolution", func(t *testing.T) {
		t.Parallel()

		g, link := parse(t, `<html><head><base href="http://example.com/other/"></head>
			<body><a href="x.html">x</a></body></html>`)

		if got := urls(g.Children(link)); !slices.Equal(got, []string{"http://example.com/other/x.html"}) {
			t.Errorf("unexpected children %v", got)
		}
	})

	t.Run("records anchors once and reports duplicates", func(t *testing.T) {
		t.Parallel()

		_, link := parse(t, `<html><body>
			<h1 id="intro">Intro</h1>
			<a name="Intro"></a>
			<p id="details"></p>
		</body></html>`)

		if !slices.Equal(link.Anchors, []string{"intro", "details"}) {
			t.Errorf("unexpected anchors %v", link.Anchors)
		}
		want := []string{`anchor/id "intro" defined multiple times`}
		if !slices.Equal(link.PageProblems, want) {
			t.Errorf("expected page problems %v, got %v", want, link.PageProblems)
		}
	})

	t.Run("id and name on the same element define one anchor", func(t *testing.T) {
		t.Parallel()

		_, link := parse(t, `<html><body>
			<a id="intro" name="Intro">Intro</a>
			<a id="top" name="start"></a>
		</body></html>`)

		if !slices.Equal(link.Anchors, []string{"intro", "top", "start"}) {
			t.Errorf("unexpected anchors %v", link.Anchors)
		}
		if len(link.PageProblems) != 0 {
			t.Errorf("expected no page problems, got %v", link.PageProblems)
		}
	})

	t.Run("fragments become requested anchors", func(t *testing.T) {
		t.Parallel()

		g, link := parse(t, `<html><body>
			<a href="a.html#part2">A</a>
			<a href="#top">top</a>
		</body></html>`)

		a := g.Lookup("http://example.com/dir/a.html")
		if a == nil {
			t.Fatal("expected a.html to be registered")
		}
		want := graph.RequestedAnchor{Parent: link.ID, Anchor: "part2"}
		if !slices.Contains(a.RequestedAnchors, want) {
			t.Errorf("expected requested anchor %v on a.html, got %v", want, a.RequestedAnchors)
		}
		self := graph.RequestedAnchor{Parent: link.ID, Anchor: "top"}
		if !slices.Contains(link.RequestedAnchors, self) {
			t.Errorf("expected requested anchor %v on the page, got %v", self, link.RequestedAnchors)
		}
		if slices.Contains(urls(g.Children(link)), link.URL) {
			t.Error("expected no self edge for a same-page anchor")
		}
	})

	t.Run("ignores javascript and data URLs", func(t *testing.T) {
		t.Parallel()

		g, link := parse(t, `<html><body>
			<a href="javascript:void(0)">js</a>
			<a href=" JavaScript:alert(1)">js</a>
			<img src="data:image/png;base64,AAAA">
		</body></html>`)

		if n := len(g.Children(link)) + len(g.Embedded(link)); n != 0 {
			t.Errorf("expected no links, got %d", n)
		}
	})

	t.Run("reports unparseable links", func(t *testing.T) {
		t.Parallel()

		_, link := parse(t, `<html><body><a href="http://[::1">bad</a></body></html>`)

		if !slices.Equal(link.PageProblems, []string{"bad link: http://[::1"}) {
			t.Errorf("unexpected page problems %v", link.PageProblems)
		}
	})

	t.Run("follows meta refresh", func(t *testing.T) {
		t.Parallel()

		g, link := parse(t, `<html><head>
			<meta http-equiv="refresh" content="5; URL='/moved.html'">
		</head></html>`)

		if got := urls(g.Children(link)); !slices.Equal(got, []string{"http://example.com/moved.html"}) {
			t.Errorf("unexpected children %v", got)
		}
	})

	t.Run("records the declared encoding", func(t *testing.T) {
		t.Parallel()

		_, link := parse(t, `<html><head><meta charset="UTF-8"></head></html>`)
		if link.Encoding != "utf-8" {
			t.Errorf("expected encoding utf-8, got %q", link.Encoding)
		}
	})

	t.Run("reports unknown encodings", func(t *testing.T) {
		t.Parallel()

		_, link := parse(t, `<html><head>
			<meta http-equiv="Content-Type" content="text/html; charset=klingon">
		</head></html>`)
		if !slices.Contains(link.PageProblems, "unknown encoding: klingon") {
			t.Errorf("expected unknown encoding problem, got %v", link.PageProblems)
		}
	})

	t.Run("parses style blocks and attributes", func(t *testing.T) {
		t.Parallel()

		g, link := parse(t, `<html><head><style>
			body { background: url("bg.png"); }
		</style></head><body><div style="background-image: url(/tile.gif)"></div></body></html>`)

		want := []string{"http://example.com/tile.gif", "http://example.com/dir/bg.png"}
		got := urls(g.Embedded(link))
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			t.Errorf("embeds:\n got %v\nwant %v", got, want)
		}
	})
}

// TestCSSParser tests style sheet parsing.
func TestCSSParser(t *testing.T) {
	t.Parallel()

	g := newGraph()
	link := mustLink(t, g, "http://example.com/css/site.css")
	css := `@import "base.css";
@import 'print.css' print;
/* url(commented.png) */
h1 { background: url( 'img/h1.png' ) }
li { list-style: url(/bullet.gif) }
p { background: url(data:image/png;base64,AAAA) }`

	if err := NewCSSParser().Parse(context.Background(), g, link, []byte(css)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"http://example.com/css/base.css",
		"http://example.com/css/print.css",
		"http://example.com/css/img/h1.png",
		"http://example.com/bullet.gif",
	}
	if got := urls(g.Embedded(link)); !slices.Equal(got, want) {
		t.Errorf("embeds:\n got %v\nwant %v", got, want)
	}
	if g.Lookup("http://example.com/css/commented.png") != nil {
		t.Error("expected commented references to be ignored")
	}
}

// tiffWithTags builds a little-endian TIFF block holding ASCII tags, which
// is what an EXIF APP1 segment carries.
func tiffWithTags(tags []struct {
	id    uint16
	value string
}) []byte {
	le := binary.LittleEndian
	header := []byte{'I', 'I', 0x2a, 0x00, 0x08, 0x00, 0x00, 0x00}

	ifdSize := 2 + 12*len(tags) + 4
	valueOffset := 8 + ifdSize

	ifd := make([]byte, ifdSize)
	le.PutUint16(ifd, uint16(len(tags)))
	var values []byte
	for i, tag := range tags {
		v := append([]byte(tag.value), 0)
		if len(v)%2 == 1 {
			v = append(v, 0)
		}
		entry := ifd[2+12*i:]
		le.PutUint16(entry[0:], tag.id)
		le.PutUint16(entry[2:], 2) // ASCII
		le.PutUint32(entry[4:], uint32(len(tag.value)+1))
		le.PutUint32(entry[8:], uint32(valueOffset+len(values)))
		values = append(values, v...)
	}

	out := append(header, ifd...)
	return append(out, values...)
}

// TestImageParser tests EXIF extraction.
func TestImageParser(t *testing.T) {
	t.Parallel()

	t.Run("reads artist, description and date", func(t *testing.T) {
		t.Parallel()

		content := append([]byte{0xff, 0xd8, 0xff, 0xe1, 0x00, 0x50, 'E', 'x', 'i', 'f', 0, 0},
			tiffWithTags([]struct {
				id    uint16
				value string
			}{
				{id: 0x010e, value: "Sunset"},
				{id: 0x0132, value: "2020:01:02 03:04:05"},
				{id: 0x013b, value: "Jane Doe"},
			})...)

		g := newGraph()
		link := mustLink(t, g, "http://example.com/photo.jpg")
		if err := NewImageParser().Parse(context.Background(), g, link, content); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if link.Author != "Jane Doe" {
			t.Errorf("expected author 'Jane Doe', got %q", link.Author)
		}
		if link.Title != "Sunset" {
			t.Errorf("expected title 'Sunset', got %q", link.Title)
		}
		want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
		if !link.Mtime.Equal(want) {
			t.Errorf("expected mtime %v, got %v", want, link.Mtime)
		}
		if link.IsPage {
			t.Error("expected images not to be pages")
		}
	})

	t.Run("images without EXIF are fine", func(t *testing.T) {
		t.Parallel()

		g := newGraph()
		link := mustLink(t, g, "http://example.com/plain.jpg")
		if err := NewImageParser().Parse(context.Background(), g, link, []byte{0xff, 0xd8, 0xff, 0xd9}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if link.Author != "" || len(link.PageProblems) != 0 {
			t.Error("expected nothing to be recorded")
		}
	})
}
