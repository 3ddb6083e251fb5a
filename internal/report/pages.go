package report

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webcheck/internal/database"
)

// internalPages matches the pages of the checked site.
func internalPages() database.LinkFilter {
	return database.LinkFilter{IsInternal: database.Bool(true), IsPage: database.Bool(true)}
}

// OldPlugin lists internal pages that have not been modified for a long
// time, oldest first.
type OldPlugin struct{}

// Name implements Plugin.
func (p *OldPlugin) Name() string { return "old" }

// Title implements Plugin.
func (p *OldPlugin) Title() string { return "What's old" }

// Generate implements Plugin.
func (p *OldPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	now := src.now()
	filter := internalPages()
	filter.MtimeBefore = now.Add(-src.Settings.OldAge)
	filter.OrderBy = database.OrderByMtime
	links, err := src.DB.Links(ctx, filter)
	if err != nil {
		return err
	}
	md.PlainTextf("Pages that have not been modified in the last %d days.", days(src.Settings.OldAge))
	md.PlainText("")
	writeAgeTable(md, links, now, "No old pages were found.")
	return nil
}

// NewPlugin lists internal pages modified recently, newest first.
type NewPlugin struct{}

// Name implements Plugin.
func (p *NewPlugin) Name() string { return "new" }

// Title implements Plugin.
func (p *NewPlugin) Title() string { return "What's new" }

// Generate implements Plugin.
func (p *NewPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	now := src.now()
	filter := internalPages()
	filter.MtimeAfter = now.Add(-src.Settings.NewAge)
	filter.OrderBy = database.OrderByMtimeDesc
	links, err := src.DB.Links(ctx, filter)
	if err != nil {
		return err
	}
	md.PlainTextf("Pages that have been modified in the last %d days.", days(src.Settings.NewAge))
	md.PlainText("")
	writeAgeTable(md, links, now, "No new pages were found.")
	return nil
}

func writeAgeTable(md *markdown.Markdown, links []*database.LinkRecord, now time.Time, empty string) {
	if len(links) == 0 {
		md.PlainText(empty)
		return
	}
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{
			linkText(l),
			formatDate(l.Mtime),
			strconv.Itoa(days(now.Sub(l.Mtime))),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Last modified", "Age (days)"},
		Rows:   rows,
	})
}

// SlowPlugin lists internal pages whose size, embedded resources included,
// exceeds the slow size, largest first.
type SlowPlugin struct{}

// Name implements Plugin.
func (p *SlowPlugin) Name() string { return "slow" }

// Title implements Plugin.
func (p *SlowPlugin) Title() string { return "What's slow" }

// Generate implements Plugin.
func (p *SlowPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	links, err := src.DB.Links(ctx, internalPages())
	if err != nil {
		return err
	}

	type slowPage struct {
		link  *database.LinkRecord
		total int64
	}
	limit := int64(src.Settings.SlowSize) * 1024
	sizes := make(map[int64]int64)
	var slow []slowPage
	for _, l := range links {
		total, err := totalSize(ctx, src.DB, l, sizes)
		if err != nil {
			return err
		}
		if total > limit {
			slow = append(slow, slowPage{link: l, total: total})
		}
	}
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].total > slow[j].total })

	md.PlainTextf("Pages larger than %d KiB including their embedded resources.", src.Settings.SlowSize)
	md.PlainText("")
	if len(slow) == 0 {
		md.PlainText("No slow pages were found.")
		return nil
	}
	rows := make([][]string, 0, len(slow))
	for _, s := range slow {
		rows = append(rows, []string{linkText(s.link), formatSize(s.link.Size), formatSize(s.total)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Size", "Total size"},
		Rows:   rows,
	})
	return nil
}

// totalSize returns the size of l plus everything it embeds, recursively.
// sizes memoizes the result per link.
func totalSize(ctx context.Context, db *database.CrawlDB, l *database.LinkRecord, sizes map[int64]int64) (int64, error) {
	if total, ok := sizes[l.ID]; ok {
		return total, nil
	}
	// Seeded before recursing so embed cycles terminate.
	sizes[l.ID] = l.Size
	embedded, err := db.Embedded(ctx, l.ID)
	if err != nil {
		return 0, err
	}
	total := l.Size
	for _, e := range embedded {
		size, err := totalSize(ctx, db, e, sizes)
		if err != nil {
			return 0, err
		}
		total += size
	}
	sizes[l.ID] = total
	return total, nil
}

// NoTitlesPlugin lists internal pages without a title.
type NoTitlesPlugin struct{}

// Name implements Plugin.
func (p *NoTitlesPlugin) Name() string { return "notitles" }

// Title implements Plugin.
func (p *NoTitlesPlugin) Title() string { return "Missing titles" }

// Generate implements Plugin.
func (p *NoTitlesPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	links, err := src.DB.Links(ctx, internalPages())
	if err != nil {
		return err
	}
	var untitled []string
	for _, l := range links {
		if strings.TrimSpace(l.Title) == "" {
			untitled = append(untitled, markdown.Link(escape(l.URL), l.URL))
		}
	}
	if len(untitled) == 0 {
		md.Tip("All pages have a title.")
		return nil
	}
	md.BulletList(untitled...)
	return nil
}

// ProblemsPlugin lists the problems found on internal pages, grouped by
// page author.
type ProblemsPlugin struct{}

// Name implements Plugin.
func (p *ProblemsPlugin) Name() string { return "problems" }

// Title implements Plugin.
func (p *ProblemsPlugin) Title() string { return "Problems" }

// unknownAuthor groups pages without an author.
const unknownAuthor = "Unknown author"

// Generate implements Plugin.
func (p *ProblemsPlugin) Generate(ctx context.Context, src *Source, md *markdown.Markdown) error {
	links, err := src.DB.Links(ctx, database.LinkFilter{
		IsInternal:      database.Bool(true),
		HasPageProblems: database.Bool(true),
	})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		md.Tip("No problems were found.")
		return nil
	}

	byAuthor := make(map[string][]*database.LinkRecord)
	for _, l := range links {
		author := strings.TrimSpace(l.Author)
		if author == "" {
			author = unknownAuthor
		}
		byAuthor[author] = append(byAuthor[author], l)
	}
	authors := make([]string, 0, len(byAuthor))
	for a := range byAuthor {
		authors = append(authors, a)
	}
	sort.Strings(authors)

	for _, author := range authors {
		md.H2(author)
		md.PlainText("")
		rows := make([][]string, 0, len(byAuthor[author]))
		for _, l := range byAuthor[author] {
			problems, err := src.DB.PageProblems(ctx, l.ID)
			if err != nil {
				return err
			}
			rows = append(rows, []string{linkText(l), escape(strings.Join(problems, "; "))})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Problems"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	return nil
}
