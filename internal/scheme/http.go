package scheme

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/webcheck/internal/graph"
)

// HTTPFetcher checks http and https links.
//
// Redirects are not followed by the client: a 3xx answer with a Location
// header is recorded as a redirect edge on the graph and the crawler fetches
// the target like any other link, so every hop is checked and counted.
type HTTPFetcher struct {
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// headers are added to every request.
	headers map[string]string

	// maxBodySize limits the response body read for internal links.
	// Zero means no limit.
	maxBodySize int64
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithHeaders adds extra request headers.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithMaxBodySize limits the number of body bytes read per response.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) {
		f.maxBodySize = size
	}
}

// NewHTTPFetcher creates an HTTPFetcher. The client is copied so its
// redirect policy can be replaced; its transport is shared.
func NewHTTPFetcher(client *http.Client, opts ...HTTPOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	f := &HTTPFetcher{
		client:      &c,
		userAgent:   "webcheck",
		maxBodySize: 5 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET request for link.
func (f *HTTPFetcher) Fetch(ctx context.Context, g *graph.Graph, link *graph.Link) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	defer resp.Body.Close()

	mimeType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	g.Update(link, func(l *graph.Link) {
		l.Status = resp.Status
		l.MimeType = mimeType
		if resp.ContentLength > 0 {
			l.Size = resp.ContentLength
		}
		if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
			l.Mtime = t
		}
	})
	if cs := params["charset"]; cs != "" {
		g.SetEncoding(link, cs)
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc := resp.Header.Get("Location"); loc != "" {
			target, err := resp.Request.URL.Parse(loc)
			if err != nil {
				return nil, fmt.Errorf("bad redirect location: %s", loc)
			}
			if err := g.AddRedirect(ctx, link, target.String()); err != nil {
				return nil, fmt.Errorf("bad redirect location: %s: %w", loc, err)
			}
			return nil, nil
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(resp.Status)
	}

	// External links are only checked, not parsed.
	if !link.IsInternal {
		return nil, nil
	}

	var body io.Reader = resp.Body
	if f.maxBodySize > 0 {
		body = io.LimitReader(resp.Body, f.maxBodySize)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	g.Update(link, func(l *graph.Link) {
		if l.Size == 0 {
			l.Size = int64(len(content))
		}
		if l.MimeType == "" {
			l.MimeType, _, _ = mime.ParseMediaType(http.DetectContentType(content))
		}
	})
	return content, nil
}

// unwrapURLError drops the "Get <url>:" prefix added by the client since
// the problem is recorded on the link itself.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
