package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcheck/internal/graph"
)

// FileName is the name of the database file inside the output directory.
const FileName = "webcheck.sqlite"

// mtimeLayout stores modification times in UTC with a fixed width so that
// string comparison in SQL orders them correctly.
const mtimeLayout = "2006-01-02 15:04:05"

// CrawlDB stores the link graph of one crawl in SQLite.
//
// Each output directory holds a single database. Saving a graph replaces
// the previous contents, so the file always mirrors the latest crawl.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the location of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		scheme TEXT NOT NULL,
		host TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		query TEXT NOT NULL DEFAULT '',
		is_internal INTEGER NOT NULL DEFAULT 0,
		yanked TEXT NOT NULL DEFAULT '',
		is_fetched INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		mimetype TEXT NOT NULL DEFAULT '',
		encoding TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		mtime TEXT,
		title TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		redirectdepth INTEGER NOT NULL DEFAULT 0,
		depth INTEGER NOT NULL DEFAULT -1,
		is_page INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_links_mtime ON links(mtime);

	-- Edge tables keep discovery order through their rowid.
	CREATE TABLE IF NOT EXISTS children (
		parent_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		child_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		UNIQUE(parent_id, child_id)
	);

	CREATE INDEX IF NOT EXISTS idx_children_child ON children(child_id);

	CREATE TABLE IF NOT EXISTS embedded (
		parent_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		child_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		UNIQUE(parent_id, child_id)
	);

	CREATE INDEX IF NOT EXISTS idx_embedded_child ON embedded(child_id);

	CREATE TABLE IF NOT EXISTS linkproblems (
		link_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_linkproblems_link ON linkproblems(link_id);

	CREATE TABLE IF NOT EXISTS pageproblems (
		link_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pageproblems_link ON pageproblems(link_id);

	CREATE TABLE IF NOT EXISTS anchors (
		link_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		anchor TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_anchors_link ON anchors(link_id);

	CREATE TABLE IF NOT EXISTS reqanchors (
		link_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		parent_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		anchor TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reqanchors_link ON reqanchors(link_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// LinkRecord is one stored link.
type LinkRecord struct {
	ID            int64
	URL           string
	Scheme        string
	Host          string
	Path          string
	Query         string
	IsInternal    bool
	Yanked        string
	IsFetched     bool
	Status        string
	MimeType      string
	Encoding      string
	Size          int64
	Mtime         time.Time
	Title         string
	Author        string
	RedirectDepth int
	Depth         int
	IsPage        bool
}

// DisplayTitle returns the title, or the URL for untitled links.
func (r *LinkRecord) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.URL
}

// tables lists every table, dependents first.
var tables = []string{"reqanchors", "anchors", "pageproblems", "linkproblems", "embedded", "children", "links"}

// Truncate removes all stored data.
func (cdb *CrawlDB) Truncate(ctx context.Context) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := truncate(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit truncate: %w", err)
	}
	return nil
}

func truncate(ctx context.Context, tx *sql.Tx) error {
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// SaveGraph replaces the stored data with the contents of g in a single
// transaction. Link IDs are stored as they are in the graph.
// The crawl must have finished.
func (cdb *CrawlDB) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := truncate(ctx, tx); err != nil {
		return err
	}

	insertLink, err := tx.PrepareContext(ctx, `
	INSERT INTO links (id, url, scheme, host, path, query, is_internal, yanked, is_fetched,
		status, mimetype, encoding, size, mtime, title, author, redirectdepth, depth, is_page)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer insertLink.Close()

	links := g.Links()
	for _, l := range links {
		var mtime sql.NullString
		if !l.Mtime.IsZero() {
			mtime = sql.NullString{String: l.Mtime.UTC().Format(mtimeLayout), Valid: true}
		}
		if _, err := insertLink.ExecContext(ctx,
			int64(l.ID), l.URL, l.Scheme, l.Host, l.Path, l.Query, l.IsInternal, l.Yanked, l.IsFetched,
			l.Status, l.MimeType, l.Encoding, l.Size, mtime, l.Title, l.Author, l.RedirectDepth, l.Depth, l.IsPage,
		); err != nil {
			return fmt.Errorf("failed to insert link %s: %w", l.URL, err)
		}
	}

	for _, l := range links {
		if err := insertEdges(ctx, tx, "children", l, g.Children(l)); err != nil {
			return err
		}
		if err := insertEdges(ctx, tx, "embedded", l, g.Embedded(l)); err != nil {
			return err
		}
		if err := insertStrings(ctx, tx, "linkproblems", "message", l, l.LinkProblems); err != nil {
			return err
		}
		if err := insertStrings(ctx, tx, "pageproblems", "message", l, l.PageProblems); err != nil {
			return err
		}
		if err := insertStrings(ctx, tx, "anchors", "anchor", l, l.Anchors); err != nil {
			return err
		}
		for _, ra := range l.RequestedAnchors {
			if g.Get(ra.Parent) == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO reqanchors (link_id, parent_id, anchor) VALUES (?, ?, ?)",
				int64(l.ID), int64(ra.Parent), ra.Anchor,
			); err != nil {
				return fmt.Errorf("failed to insert requested anchor: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, table string, parent *graph.Link, targets []*graph.Link) error {
	for _, target := range targets {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+table+" (parent_id, child_id) VALUES (?, ?)",
			int64(parent.ID), int64(target.ID),
		); err != nil {
			return fmt.Errorf("failed to insert %s edge: %w", table, err)
		}
	}
	return nil
}

func insertStrings(ctx context.Context, tx *sql.Tx, table, column string, l *graph.Link, values []string) error {
	for _, v := range values {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+table+" (link_id, "+column+") VALUES (?, ?)",
			int64(l.ID), v,
		); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// LoadGraph restores the stored links and edges into g, which should be
// empty, and returns the number of links restored.
func (cdb *CrawlDB) LoadGraph(ctx context.Context, g *graph.Graph) (int, error) {
	records, err := cdb.Links(ctx, LinkFilter{OrderBy: OrderByID})
	if err != nil {
		return 0, err
	}
	linkProblems, err := cdb.stringsByLink(ctx, "linkproblems", "message")
	if err != nil {
		return 0, err
	}
	pageProblems, err := cdb.stringsByLink(ctx, "pageproblems", "message")
	if err != nil {
		return 0, err
	}
	anchors, err := cdb.stringsByLink(ctx, "anchors", "anchor")
	if err != nil {
		return 0, err
	}

	restored := make(map[int64]*graph.Link, len(records))
	for _, r := range records {
		restored[r.ID] = g.Restore(graph.Link{
			URL:           r.URL,
			Scheme:        r.Scheme,
			Host:          r.Host,
			Path:          r.Path,
			Query:         r.Query,
			IsInternal:    r.IsInternal,
			Yanked:        r.Yanked,
			IsFetched:     r.IsFetched,
			Status:        r.Status,
			MimeType:      r.MimeType,
			Encoding:      r.Encoding,
			Size:          r.Size,
			Mtime:         r.Mtime,
			Title:         r.Title,
			Author:        r.Author,
			RedirectDepth: r.RedirectDepth,
			IsPage:        r.IsPage,
			LinkProblems:  linkProblems[r.ID],
			PageProblems:  pageProblems[r.ID],
			Anchors:       anchors[r.ID],
		})
	}

	if err := cdb.restoreEdges(ctx, "children", restored, g.RestoreChild); err != nil {
		return 0, err
	}
	if err := cdb.restoreEdges(ctx, "embedded", restored, g.RestoreEmbed); err != nil {
		return 0, err
	}

	rows, err := cdb.db.QueryContext(ctx, "SELECT link_id, parent_id, anchor FROM reqanchors ORDER BY rowid")
	if err != nil {
		return 0, fmt.Errorf("failed to query requested anchors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var linkID, parentID int64
		var anchor string
		if err := rows.Scan(&linkID, &parentID, &anchor); err != nil {
			return 0, fmt.Errorf("failed to scan requested anchor: %w", err)
		}
		l, parent := restored[linkID], restored[parentID]
		if l != nil && parent != nil {
			g.AddRequestedAnchor(l, parent, anchor)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read requested anchors: %w", err)
	}

	return len(restored), nil
}

func (cdb *CrawlDB) restoreEdges(ctx context.Context, table string, restored map[int64]*graph.Link, add func(parent, target *graph.Link)) error {
	rows, err := cdb.db.QueryContext(ctx, "SELECT parent_id, child_id FROM "+table+" ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var parentID, childID int64
		if err := rows.Scan(&parentID, &childID); err != nil {
			return fmt.Errorf("failed to scan %s edge: %w", table, err)
		}
		parent, child := restored[parentID], restored[childID]
		if parent != nil && child != nil {
			add(parent, child)
		}
	}
	return rows.Err()
}

func (cdb *CrawlDB) stringsByLink(ctx context.Context, table, column string) (map[int64][]string, error) {
	rows, err := cdb.db.QueryContext(ctx, "SELECT link_id, "+column+" FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var v string
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		out[id] = append(out[id], v)
	}
	return out, rows.Err()
}

// Order selects the ordering of Links results.
type Order int

const (
	// OrderByURL sorts by URL.
	OrderByURL Order = iota
	// OrderByID sorts by link ID, which is discovery order.
	OrderByID
	// OrderByMtime sorts oldest first.
	OrderByMtime
	// OrderByMtimeDesc sorts newest first.
	OrderByMtimeDesc
	// OrderBySizeDesc sorts largest first.
	OrderBySizeDesc
)

func (o Order) clause() string {
	switch o {
	case OrderByID:
		return "id"
	case OrderByMtime:
		return "mtime, url"
	case OrderByMtimeDesc:
		return "mtime DESC, url"
	case OrderBySizeDesc:
		return "size DESC, url"
	default:
		return "url"
	}
}

// LinkFilter narrows a Links query. Nil pointers and zero values match
// everything.
type LinkFilter struct {
	IsInternal      *bool
	IsPage          *bool
	IsFetched       *bool
	IsYanked        *bool
	HasProblems     *bool
	HasLinkProblems *bool
	HasPageProblems *bool

	// MimePrefix matches links whose content type starts with the prefix.
	MimePrefix string

	// MtimeBefore and MtimeAfter only match links with a known mtime.
	MtimeBefore time.Time
	MtimeAfter  time.Time

	// MinSize matches links of at least this many bytes.
	MinSize int64

	OrderBy Order
}

// Bool returns a pointer to b for use in a LinkFilter.
func Bool(b bool) *bool {
	return &b
}

const (
	hasLinkProblems = "EXISTS (SELECT 1 FROM linkproblems p WHERE p.link_id = links.id)"
	hasPageProblems = "EXISTS (SELECT 1 FROM pageproblems p WHERE p.link_id = links.id)"
)

func (f LinkFilter) where() (string, []any) {
	var conds []string
	var args []any

	flag := func(v *bool, cond string) {
		if v == nil {
			return
		}
		if *v {
			conds = append(conds, cond)
		} else {
			conds = append(conds, "NOT ("+cond+")")
		}
	}
	flag(f.IsInternal, "is_internal = 1")
	flag(f.IsPage, "is_page = 1")
	flag(f.IsFetched, "is_fetched = 1")
	flag(f.IsYanked, "yanked != ''")
	flag(f.HasProblems, hasLinkProblems+" OR "+hasPageProblems)
	flag(f.HasLinkProblems, hasLinkProblems)
	flag(f.HasPageProblems, hasPageProblems)

	if f.MimePrefix != "" {
		conds = append(conds, "substr(mimetype, 1, ?) = ?")
		args = append(args, len(f.MimePrefix), f.MimePrefix)
	}
	if !f.MtimeBefore.IsZero() {
		conds = append(conds, "mtime IS NOT NULL AND mtime < ?")
		args = append(args, f.MtimeBefore.UTC().Format(mtimeLayout))
	}
	if !f.MtimeAfter.IsZero() {
		conds = append(conds, "mtime IS NOT NULL AND mtime > ?")
		args = append(args, f.MtimeAfter.UTC().Format(mtimeLayout))
	}
	if f.MinSize > 0 {
		conds = append(conds, "size >= ?")
		args = append(args, f.MinSize)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE (" + strings.Join(conds, ") AND (") + ")", args
}

const linkColumns = `id, url, scheme, host, path, query, is_internal, yanked, is_fetched,
	status, mimetype, encoding, size, mtime, title, author, redirectdepth, depth, is_page`

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*LinkRecord, error) {
	var r LinkRecord
	var mtime sql.NullString
	if err := s.Scan(
		&r.ID, &r.URL, &r.Scheme, &r.Host, &r.Path, &r.Query, &r.IsInternal, &r.Yanked, &r.IsFetched,
		&r.Status, &r.MimeType, &r.Encoding, &r.Size, &mtime, &r.Title, &r.Author, &r.RedirectDepth, &r.Depth, &r.IsPage,
	); err != nil {
		return nil, err
	}
	if mtime.Valid {
		r.Mtime = parseTimestamp(mtime.String)
	}
	return &r, nil
}

func (cdb *CrawlDB) queryLinks(ctx context.Context, query string, args ...any) ([]*LinkRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []*LinkRecord
	for rows.Next() {
		r, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}
	return links, nil
}

// Links returns the links matching filter.
func (cdb *CrawlDB) Links(ctx context.Context, filter LinkFilter) ([]*LinkRecord, error) {
	where, args := filter.where()
	query := "SELECT " + linkColumns + " FROM links" + where + " ORDER BY " + filter.OrderBy.clause()
	return cdb.queryLinks(ctx, query, args...)
}

// Count returns the number of links matching filter.
func (cdb *CrawlDB) Count(ctx context.Context, filter LinkFilter) (int, error) {
	where, args := filter.where()
	var count int
	if err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// Link returns the link with the given ID, or nil if there is none.
func (cdb *CrawlDB) Link(ctx context.Context, id int64) (*LinkRecord, error) {
	return cdb.queryLink(ctx, "SELECT "+linkColumns+" FROM links WHERE id = ?", id)
}

// LinkByURL returns the link stored for a normalized URL, or nil if there
// is none.
func (cdb *CrawlDB) LinkByURL(ctx context.Context, url string) (*LinkRecord, error) {
	return cdb.queryLink(ctx, "SELECT "+linkColumns+" FROM links WHERE url = ?", url)
}

func (cdb *CrawlDB) queryLink(ctx context.Context, query string, arg any) (*LinkRecord, error) {
	r, err := scanLink(cdb.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return r, nil
}

// Children returns the navigational targets of a link in discovery order.
func (cdb *CrawlDB) Children(ctx context.Context, id int64) ([]*LinkRecord, error) {
	return cdb.edgeTargets(ctx, "children", id)
}

// Embedded returns the resources embedded by a link in discovery order.
func (cdb *CrawlDB) Embedded(ctx context.Context, id int64) ([]*LinkRecord, error) {
	return cdb.edgeTargets(ctx, "embedded", id)
}

func (cdb *CrawlDB) edgeTargets(ctx context.Context, table string, id int64) ([]*LinkRecord, error) {
	query := "SELECT " + prefixed("l.", linkColumns) + " FROM " + table + " e JOIN links l ON l.id = e.child_id" +
		" WHERE e.parent_id = ? ORDER BY e.rowid"
	return cdb.queryLinks(ctx, query, id)
}

// Parents returns every link that refers to the link, either as child or
// as embed, sorted by URL.
func (cdb *CrawlDB) Parents(ctx context.Context, id int64) ([]*LinkRecord, error) {
	query := "SELECT " + linkColumns + " FROM links WHERE id IN (" +
		"SELECT parent_id FROM children WHERE child_id = ? " +
		"UNION SELECT parent_id FROM embedded WHERE child_id = ?) ORDER BY url"
	return cdb.queryLinks(ctx, query, id, id)
}

// LinkProblems returns the problems retrieving a link.
func (cdb *CrawlDB) LinkProblems(ctx context.Context, id int64) ([]string, error) {
	return cdb.queryStrings(ctx, "SELECT message FROM linkproblems WHERE link_id = ? ORDER BY rowid", id)
}

// PageProblems returns the problems found in the content of a link.
func (cdb *CrawlDB) PageProblems(ctx context.Context, id int64) ([]string, error) {
	return cdb.queryStrings(ctx, "SELECT message FROM pageproblems WHERE link_id = ? ORDER BY rowid", id)
}

// Anchors returns the anchors defined on a page.
func (cdb *CrawlDB) Anchors(ctx context.Context, id int64) ([]string, error) {
	return cdb.queryStrings(ctx, "SELECT anchor FROM anchors WHERE link_id = ? ORDER BY rowid", id)
}

// RequestedAnchor is a reference to "#Anchor" on a link made by Parent.
type RequestedAnchor struct {
	ParentID int64
	Anchor   string
}

// RequestedAnchors returns the anchors other pages reference on a link.
func (cdb *CrawlDB) RequestedAnchors(ctx context.Context, id int64) ([]RequestedAnchor, error) {
	rows, err := cdb.db.QueryContext(ctx,
		"SELECT parent_id, anchor FROM reqanchors WHERE link_id = ? ORDER BY rowid", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query requested anchors: %w", err)
	}
	defer rows.Close()

	var out []RequestedAnchor
	for rows.Next() {
		var ra RequestedAnchor
		if err := rows.Scan(&ra.ParentID, &ra.Anchor); err != nil {
			return nil, fmt.Errorf("failed to scan requested anchor: %w", err)
		}
		out = append(out, ra)
	}
	return out, rows.Err()
}

func (cdb *CrawlDB) queryStrings(ctx context.Context, query string, id int64) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// prefixed qualifies every column of a comma separated list.
func prefixed(prefix, columns string) string {
	fields := strings.Split(columns, ",")
	for i, f := range fields {
		fields[i] = prefix + strings.TrimSpace(f)
	}
	return strings.Join(fields, ", ")
}

// timestampFormats lists the formats parseTimestamp accepts.
var timestampFormats = []string{
	mtimeLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
