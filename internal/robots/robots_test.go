package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newRobotsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func hostOf(t *testing.T, server *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	return u.Host
}

func TestCache_Allowed(t *testing.T) {
	t.Parallel()

	t.Run("disallowed paths are refused", func(t *testing.T) {
		t.Parallel()

		server, _ := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n")
		c := NewCache(server.Client())
		host := hostOf(t, server)

		if c.Allowed(context.Background(), "http", host, "/private/x.html") {
			t.Error("expected /private/x.html to be disallowed")
		}
		if !c.Allowed(context.Background(), "http", host, "/public/x.html") {
			t.Error("expected /public/x.html to be allowed")
		}
	})

	t.Run("the first caller's cancellation does not poison the cache", func(t *testing.T) {
		t.Parallel()

		server, hits := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n")
		c := NewCache(server.Client(), WithTimeout(5*time.Second))
		host := hostOf(t, server)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if c.Allowed(ctx, "http", host, "/private/x.html") {
			t.Error("expected /private/x.html to be disallowed for a cancelled caller")
		}
		if c.Allowed(context.Background(), "http", host, "/private/y.html") {
			t.Error("expected the cached rules to disallow /private/y.html")
		}
		if got := hits.Load(); got != 1 {
			t.Errorf("expected 1 robots.txt fetch, got %d", got)
		}
	})

	t.Run("agent specific group wins", func(t *testing.T) {
		t.Parallel()

		server, _ := newRobotsServer(t, http.StatusOK,
			"User-agent: *\nDisallow: /\n\nUser-agent: webcheck\nDisallow: /tmp/\n")
		c := NewCache(server.Client(), WithUserAgent("webcheck"))
		host := hostOf(t, server)

		if !c.Allowed(context.Background(), "http", host, "/index.html") {
			t.Error("expected webcheck to be allowed outside /tmp/")
		}
		if c.Allowed(context.Background(), "http", host, "/tmp/a") {
			t.Error("expected /tmp/a to be disallowed")
		}
	})

	t.Run("robots.txt is fetched once per host", func(t *testing.T) {
		t.Parallel()

		server, hits := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /cgi-bin/\n")
		c := NewCache(server.Client())
		host := hostOf(t, server)

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Allowed(context.Background(), "http", host, "/cgi-bin/x")
			}()
		}
		wg.Wait()
		c.Allowed(context.Background(), "http", host, "/other")

		if got := hits.Load(); got != 1 {
			t.Errorf("expected 1 robots.txt fetch, got %d", got)
		}
		if c.Len() != 1 {
			t.Errorf("expected 1 cached host, got %d", c.Len())
		}
	})

	t.Run("failures allow everything", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			status int
		}{
			{name: "missing robots.txt", status: http.StatusNotFound},
			{name: "server error", status: http.StatusInternalServerError},
			{name: "forbidden", status: http.StatusForbidden},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				server, _ := newRobotsServer(t, tt.status, "User-agent: *\nDisallow: /\n")
				c := NewCache(server.Client())
				if !c.Allowed(context.Background(), "http", hostOf(t, server), "/anything") {
					t.Error("expected everything to be allowed")
				}
			})
		}
	})

	t.Run("unreachable host allows everything", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		host := hostOf(t, server)
		server.Close()

		c := NewCache(nil)
		if !c.Allowed(context.Background(), "http", host, "/private/") {
			t.Error("expected everything to be allowed when robots.txt is unreachable")
		}
	})

	t.Run("non-http schemes skip the lookup", func(t *testing.T) {
		t.Parallel()

		c := NewCache(nil)
		if !c.Allowed(context.Background(), "ftp", "ftp.example.com", "/pub/") {
			t.Error("expected ftp to be allowed")
		}
		if c.Len() != 0 {
			t.Errorf("expected no cached hosts, got %d", c.Len())
		}
	})
}
