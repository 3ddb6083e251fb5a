package scheme

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/nao1215/webcheck/internal/graph"
)

// Anonymous FTP credentials used when the URL carries none.
const (
	anonymousUser     = "anonymous"
	anonymousPassword = "webcheck@"
)

// FTPFetcher checks ftp:// links. Each fetch opens its own control
// connection so links can be checked concurrently.
type FTPFetcher struct {
	dial DialFunc

	// timeout bounds dialing and every command.
	timeout time.Duration

	// maxBodySize limits how much of a file is retrieved. Zero means no
	// limit.
	maxBodySize int64
}

// FTPOption configures an FTPFetcher.
type FTPOption func(*FTPFetcher)

// WithFTPTimeout sets the dial and command timeout.
func WithFTPTimeout(timeout time.Duration) FTPOption {
	return func(f *FTPFetcher) {
		f.timeout = timeout
	}
}

// WithFTPMaxBodySize limits the number of bytes retrieved per file.
func WithFTPMaxBodySize(size int64) FTPOption {
	return func(f *FTPFetcher) {
		f.maxBodySize = size
	}
}

// NewFTPFetcher creates an FTPFetcher that connects through dial, which
// may go through a proxy (see NewFTPDialer). A nil dial connects directly.
func NewFTPFetcher(dial DialFunc, opts ...FTPOption) *FTPFetcher {
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	f := &FTPFetcher{
		dial:        dial,
		timeout:     30 * time.Second,
		maxBodySize: 5 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch logs in, records size and modification time of the file behind
// link and retrieves it for internal links. Paths ending in a slash are
// directories and only checked by changing into them.
func (f *FTPFetcher) Fetch(ctx context.Context, g *graph.Graph, link *graph.Link) ([]byte, error) {
	u, err := url.Parse(link.URL)
	if err != nil {
		return nil, err
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "21")
	}

	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(f.timeout),
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			return f.dial(ctx, network, address)
		}),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Quit() }()

	user, password := anonymousUser, anonymousPassword
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}
	if err := conn.Login(user, password); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	name := u.Path
	if name == "" {
		name = "/"
	}
	if strings.HasSuffix(name, "/") {
		return nil, conn.ChangeDir(name)
	}

	size, err := conn.FileSize(name)
	if err != nil {
		return nil, err
	}
	mtime, _ := conn.GetTime(name)
	g.Update(link, func(l *graph.Link) {
		l.Size = size
		l.MimeType = mimeTypeByName(path.Base(name))
		if !mtime.IsZero() {
			l.Mtime = mtime
		}
	})
	if !link.IsInternal {
		return nil, nil
	}

	resp, err := conn.Retr(name)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	var r io.Reader = resp
	if f.maxBodySize > 0 {
		r = io.LimitReader(resp, f.maxBodySize)
	}
	return io.ReadAll(r)
}
