package graph

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// ErrEmptyURL is returned by Normalize for blank input.
var ErrEmptyURL = errors.New("empty URL")

// defaultPorts maps schemes to the port that is implied when none is given.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

// Normalize canonicalizes a URL so that equivalent spellings share one key.
// It returns the canonical URL with the fragment removed, and the fragment
// that was removed (unescaped, possibly empty).
//
// Canonicalization rules:
//   - scheme and host are lower-cased
//   - the default port for the scheme is dropped
//   - an empty path becomes "/" for hierarchical URLs
//   - "." and ".." segments are resolved, a trailing slash is kept
//   - the path is re-escaped canonically (e.g. "%7e" becomes "~")
//
// Opaque URLs such as "mailto:user@example.com" only lose their fragment.
func Normalize(raw string) (*url.URL, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", ErrEmptyURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return nil, "", fmt.Errorf("invalid URL %q: missing scheme", raw)
	}

	fragment := u.Fragment
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)

	if u.Opaque != "" {
		return u, fragment, nil
	}

	u.Host = normalizeHost(u.Scheme, u.Host)
	u.Path = cleanPath(u.Path)
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	// Forces url.URL.String to derive the escaping from Path.
	u.RawPath = ""
	u.ForceQuery = false

	return u, fragment, nil
}

// Key returns the canonical string form of raw, which is the Link index key.
func Key(raw string) (string, error) {
	u, _, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return strings.TrimSuffix(host, ":")
	}
	if port == "" || defaultPorts[scheme] == port {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// cleanPath resolves dot segments like path.Clean but keeps a trailing
// slash, which is significant for URLs.
func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	trailing := strings.HasSuffix(p, "/") || strings.HasSuffix(p, "/.") || strings.HasSuffix(p, "/..")
	cleaned := path.Clean("/" + p)
	if !strings.HasPrefix(p, "/") && cleaned == "/" {
		return "/"
	}
	if trailing && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
