// Package scheme provides the fetchers that retrieve links by URL scheme.
//
//   - HTTPFetcher: http and https, redirects recorded as graph edges
//   - FTPFetcher: ftp through github.com/jlaffaye/ftp
//   - FileFetcher: file URLs on the local file system
//
// A fetcher records status, mime type, size and modification time on the
// Link and returns content only for internal links, which are the only ones
// that get parsed. Failures are returned as errors and become link problems.
//
// NewHTTPClient and NewFTPDialer turn the proxy configuration into a
// client and a dialer; socks5 proxies go through golang.org/x/net/proxy.
package scheme
