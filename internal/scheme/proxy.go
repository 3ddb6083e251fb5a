package scheme

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ErrUnsupportedProxy is returned for proxy URLs whose scheme cannot carry
// the requested protocol.
var ErrUnsupportedProxy = errors.New("unsupported proxy")

// DialFunc opens a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// NewHTTPClient builds the client used for http, https and robots.txt
// requests.
//
// proxies maps a URL scheme to a proxy URL. HTTP(S) proxies are applied per
// request scheme; a socks5 proxy configured for http or https is used as the
// dialer for every connection. Schemes without an entry use the
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY environment variables.
func NewHTTPClient(proxies map[string]string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	httpProxies := make(map[string]*url.URL)
	for _, s := range []string{"http", "https"} {
		raw, ok := proxies[s]
		if !ok {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedProxy, raw, err)
		}
		switch u.Scheme {
		case "http", "https":
			httpProxies[s] = u
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedProxy, raw, err)
			}
			transport.Proxy = nil
			transport.DialContext = contextDialer(d)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedProxy, raw)
		}
	}
	if len(httpProxies) > 0 {
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if u, ok := httpProxies[req.URL.Scheme]; ok {
				return u, nil
			}
			return http.ProxyFromEnvironment(req)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// NewFTPDialer returns the dial function for FTP control and data
// connections: the configured "ftp" socks5 proxy, otherwise the ALL_PROXY
// environment setting, otherwise a direct connection.
func NewFTPDialer(proxies map[string]string) (DialFunc, error) {
	raw, ok := proxies["ftp"]
	if !ok {
		return contextDialer(proxy.FromEnvironment()), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedProxy, raw, err)
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("%w: ftp over %s: %w", ErrUnsupportedProxy, u.Scheme, err)
	}
	return contextDialer(d), nil
}

// contextDialer adapts d to a DialFunc. Dialers without context support
// are raced against the context.
func contextDialer(d proxy.Dialer) DialFunc {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, address)
			resultCh <- dialResult{conn, err}
		}()
		select {
		case <-ctx.Done():
			go func() {
				if r := <-resultCh; r.conn != nil {
					_ = r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-resultCh:
			return r.conn, r.err
		}
	}
}
