package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webcheck/internal/database"
)

// cellReplacer escapes the characters that break a Markdown table cell.
var cellReplacer = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

// escape makes text safe for a Markdown table cell or link text.
func escape(text string) string {
	return cellReplacer.Replace(text)
}

// linkText renders a stored link as a Markdown link labelled with its
// title.
func linkText(l *database.LinkRecord) string {
	return markdown.Link(escape(l.DisplayTitle()), l.URL)
}

// formatSize renders a byte count the way humans read it.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// days returns d in whole days.
func days(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

// formatDate renders a modification time, or "-" when it is unknown.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
