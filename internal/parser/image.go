package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/webcheck/internal/graph"
)

// exifTimeLayout is the EXIF date format; it carries no time zone.
const exifTimeLayout = "2006:01:02 15:04:05"

// ImageParser reads EXIF metadata from JPEG and TIFF images: the artist
// becomes the author, the image description the title and the capture time
// the modification time when the server did not report one.
type ImageParser struct{}

// NewImageParser creates an ImageParser.
func NewImageParser() *ImageParser {
	return &ImageParser{}
}

// Parse records the EXIF metadata of content on link. Images without EXIF
// data are fine.
func (p *ImageParser) Parse(_ context.Context, g *graph.Graph, link *graph.Link, content []byte) error {
	raw, err := exif.SearchAndExtractExif(content)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil
		}
		return fmt.Errorf("failed to read EXIF data: %w", err)
	}
	tags, _, err := exif.GetFlatExifData(raw, &exif.ScanOptions{})
	if err != nil {
		return fmt.Errorf("failed to read EXIF data: %w", err)
	}

	values := make(map[string]string, len(tags))
	for _, tag := range tags {
		if _, ok := values[tag.TagName]; ok {
			continue
		}
		if s, ok := tag.Value.(string); ok {
			values[tag.TagName] = strings.TrimSpace(strings.TrimRight(s, "\x00"))
		}
	}

	var mtime time.Time
	for _, name := range []string{"DateTimeOriginal", "DateTime"} {
		if t, err := time.ParseInLocation(exifTimeLayout, values[name], time.UTC); err == nil {
			mtime = t
			break
		}
	}

	g.Update(link, func(l *graph.Link) {
		if l.Author == "" {
			l.Author = values["Artist"]
		}
		if l.Title == "" {
			l.Title = values["ImageDescription"]
		}
		if l.Mtime.IsZero() {
			l.Mtime = mtime
		}
	})
	return nil
}
