package scheme

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"

	"github.com/nao1215/webcheck/internal/graph"
)

// FileFetcher checks file:// links on the local file system.
type FileFetcher struct {
	// maxBodySize limits how much of a file is read. Zero means no limit.
	maxBodySize int64
}

// NewFileFetcher creates a FileFetcher reading at most maxBodySize bytes
// per file.
func NewFileFetcher(maxBodySize int64) *FileFetcher {
	return &FileFetcher{maxBodySize: maxBodySize}
}

// Fetch stats the file behind link and returns its content for internal
// regular files. Directories are checked but have no content.
func (f *FileFetcher) Fetch(ctx context.Context, g *graph.Graph, link *graph.Link) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := link.Path
	info, err := os.Stat(name)
	if err != nil {
		return nil, pathError(err)
	}

	g.Update(link, func(l *graph.Link) {
		l.Mtime = info.ModTime()
		if !info.IsDir() {
			l.Size = info.Size()
			l.MimeType = mimeTypeByName(name)
		}
	})
	if info.IsDir() || !link.IsInternal {
		return nil, nil
	}

	file, err := os.Open(name) //nolint:gosec // Checking local links is the purpose
	if err != nil {
		return nil, pathError(err)
	}
	defer file.Close()

	var r io.Reader = file
	if f.maxBodySize > 0 {
		r = io.LimitReader(file, f.maxBodySize)
	}
	return io.ReadAll(r)
}

// pathError strips the operation and path from file system errors.
func pathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// mimeTypeByName guesses a mime type from the file extension.
func mimeTypeByName(name string) string {
	mt, _, err := mime.ParseMediaType(mime.TypeByExtension(path.Ext(name)))
	if err != nil {
		return ""
	}
	return mt
}
