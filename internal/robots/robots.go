package robots

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// maxRobotsSize bounds how much of a robots.txt file is read.
const maxRobotsSize = 512 * 1024

// defaultTimeout bounds a single robots.txt fetch.
const defaultTimeout = 30 * time.Second

// Cache answers robots.txt questions for every scheme and host seen during
// one crawl. Each robots.txt is fetched at most once; concurrent callers
// asking about the same host wait for the single fetch in flight.
//
// A robots.txt that cannot be fetched or parsed is remembered as "no
// restrictions", so robots problems never block a crawl.
type Cache struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger

	flight singleflight.Group

	mu sync.RWMutex
	// rules maps "scheme://host" to its parsed group; nil means allow all.
	rules map[string]*robotstxt.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithUserAgent sets the agent name matched against User-agent lines and
// sent when fetching robots.txt.
func WithUserAgent(ua string) Option {
	return func(c *Cache) {
		c.userAgent = ua
	}
}

// WithTimeout bounds each robots.txt fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.timeout = d
	}
}

// WithLogger sets the logger used to report robots.txt failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates an empty Cache fetching through client.
// A nil client uses a plain http.Client with a 30 second timeout.
func NewCache(client *http.Client, opts ...Option) *Cache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Cache{
		client:    client,
		userAgent: "webcheck",
		timeout:   defaultTimeout,
		rules:     make(map[string]*robotstxt.Group),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Allowed reports whether the robots.txt of scheme://host permits fetching
// path (which may include a query). Schemes other than http and https are
// always allowed.
func (c *Cache) Allowed(ctx context.Context, scheme, host, path string) bool {
	scheme = strings.ToLower(scheme)
	if scheme != "http" && scheme != "https" {
		return true
	}
	if path == "" {
		path = "/"
	}
	group := c.lookup(ctx, scheme+"://"+strings.ToLower(host))
	if group == nil {
		return true
	}
	return group.Test(path)
}

// Len returns the number of hosts whose robots.txt has been consulted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

func (c *Cache) lookup(ctx context.Context, key string) *robotstxt.Group {
	c.mu.RLock()
	g, ok := c.rules[key]
	c.mu.RUnlock()
	if ok {
		return g
	}

	// Detached from ctx: the result is shared and cached for every caller.
	v, _, _ := c.flight.Do(key, func() (any, error) {
		c.mu.RLock()
		g, ok := c.rules[key]
		c.mu.RUnlock()
		if ok {
			return g, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		g = c.fetch(fetchCtx, key)
		c.mu.Lock()
		c.rules[key] = g
		c.mu.Unlock()
		return g, nil
	})
	g, _ = v.(*robotstxt.Group)
	return g
}

// fetch retrieves and parses the robots.txt below base. It returns nil
// (allow everything) on any failure.
func (c *Cache) fetch(ctx context.Context, base string) *robotstxt.Group {
	robotsURL := base + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		c.logger.Debug("robots.txt request failed", "url", robotsURL, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt fetch failed", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	// Server errors would make robotstxt disallow everything.
	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Debug("robots.txt unavailable", "url", robotsURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		c.logger.Debug("robots.txt read failed", "url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Debug("robots.txt parse failed", "url", robotsURL, "error", err)
		return nil
	}
	return data.FindGroup(c.userAgent)
}
