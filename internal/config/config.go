package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Report ages and sizes follow the historical webcheck defaults.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webcheck"

	// DefaultOutputDir is where reports and the database are written.
	DefaultOutputDir = "."

	// DefaultRedirectDepth is the longest redirect chain that is followed.
	// -1 disables the limit.
	DefaultRedirectDepth = 5

	// DefaultDebugLevel produces normal output: warnings and errors.
	DefaultDebugLevel = 1

	// DefaultWorkers keeps the crawl sequential, which gives a
	// deterministic fetch order.
	DefaultWorkers = 1

	// DefaultTimeout bounds every single fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies webcheck in HTTP requests and is the
	// agent name matched in robots.txt.
	DefaultUserAgent = "webcheck/2.0 (+https://github.com/nao1215/webcheck)"

	// DefaultMaxBodySize limits the response body size that is parsed.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultOldAge is the age after which a page is listed as old.
	DefaultOldAge = 700 * 24 * time.Hour

	// DefaultNewAge is the age below which a page is listed as new.
	DefaultNewAge = 7 * 24 * time.Hour

	// DefaultSlowSize is the page size in KiB above which a page is slow.
	DefaultSlowSize = 76

	// DefaultSitemapLevel is how many levels deep the site map goes.
	DefaultSitemapLevel = 5

	// LogFormatText writes human readable key=value log lines.
	LogFormatText = "text"

	// LogFormatJSON writes one JSON object per log record.
	LogFormatJSON = "json"
)

// DefaultSchemes are the URL schemes webcheck fetches.
func DefaultSchemes() []string {
	return []string{"http", "https", "ftp", "file"}
}

// DefaultPlugins are the reports generated after a crawl, in menu order.
func DefaultPlugins() []string {
	return []string{
		"sitemap", "badlinks", "images", "old", "new",
		"slow", "notitles", "external", "notchkd", "problems",
	}
}

// supportedSchemes are the schemes a fetcher exists for.
var supportedSchemes = []string{"http", "https", "ftp", "file"}

// Config holds every webcheck option.
// It is populated from the YAML file and CLI flags and passed explicitly to
// the components that need it.
type Config struct {
	// BaseURLs are the URLs the crawl starts from. The first one roots the
	// site map.
	BaseURLs []string

	// BaseURLsOnly limits the site to URLs below the base URLs instead of
	// everything on their hosts.
	BaseURLsOnly bool

	// ExcludedURLs are case-insensitive regular expressions; matching URLs
	// are considered external.
	ExcludedURLs []string

	// YankedURLs are case-insensitive regular expressions; matching URLs are
	// not checked at all.
	YankedURLs []string

	// AvoidExternalLinks skips checking external links.
	AvoidExternalLinks bool

	// Schemes lists the URL schemes that are checked. Other schemes are
	// treated as external and never fetched.
	Schemes []string

	// Proxies maps a scheme to the proxy URL used for it, for example
	// "http" → "http://localhost:3128" or "ftp" → "socks5://127.0.0.1:1080".
	// Schemes without an entry use the environment.
	Proxies map[string]string

	// Headers are added to every HTTP request.
	Headers map[string]string

	// Hosts are additional host names considered part of the site.
	Hosts []string

	// OutputDir receives the database and the reports.
	OutputDir string

	// Wait is the minimum time between the start of two fetches.
	Wait time.Duration

	// RedirectDepth is the longest redirect chain followed; -1 is unlimited.
	RedirectDepth int

	// DebugLevel selects log output: 0 silent, 1 normal, 2 informational,
	// 3 and above debug.
	DebugLevel int

	// Verbose forces debug logging regardless of DebugLevel.
	Verbose bool

	// LogFormat is LogFormatText or LogFormatJSON.
	LogFormat string

	// Workers is the number of fetches that may run at the same time.
	Workers int

	// Timeout bounds every single fetch.
	Timeout time.Duration

	// UserAgent is sent with HTTP requests and matched in robots.txt.
	UserAgent string

	// MaxBodySize limits how much of a response body is read.
	MaxBodySize int64

	// Continue resumes from the graph stored in the existing database
	// instead of starting over.
	Continue bool

	// JSONReport additionally writes the link table as JSON.
	JSONReport bool

	// Plugins lists the reports to generate.
	Plugins []string

	// OldAge is the age after which a page is reported as old.
	OldAge time.Duration

	// NewAge is the age below which a page is reported as new.
	NewAge time.Duration

	// SlowSize is the size in KiB above which a page is reported as slow.
	SlowSize int

	// SitemapLevel is how many levels the site map shows.
	SitemapLevel int

	// ConfigFilePath is the YAML file the configuration was read from.
	ConfigFilePath string

	// Compiled patterns, set by Validate.
	CompiledExcluded []*regexp.Regexp
	CompiledYanked   []*regexp.Regexp
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Schemes:       DefaultSchemes(),
		Proxies:       make(map[string]string),
		Headers:       make(map[string]string),
		OutputDir:     DefaultOutputDir,
		RedirectDepth: DefaultRedirectDepth,
		DebugLevel:    DefaultDebugLevel,
		LogFormat:     LogFormatText,
		Workers:       DefaultWorkers,
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		MaxBodySize:   DefaultMaxBodySize,
		Plugins:       DefaultPlugins(),
		OldAge:        DefaultOldAge,
		NewAge:        DefaultNewAge,
		SlowSize:      DefaultSlowSize,
		SitemapLevel:  DefaultSitemapLevel,
	}
}

// XDGConfigDir returns the XDG config directory for webcheck.
// On Linux: ~/.config/webcheck
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir returns the XDG data directory for webcheck.
// On Linux: ~/.local/share/webcheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// LogLevel maps DebugLevel and Verbose to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch {
	case c.Verbose || c.DebugLevel >= 3:
		return slog.LevelDebug
	case c.DebugLevel == 2:
		return slog.LevelInfo
	case c.DebugLevel <= 0:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Validate checks the configuration and compiles the URL patterns.
// Every error it returns is fatal: the crawl must not start.
func (c *Config) Validate() error {
	if len(c.BaseURLs) == 0 {
		return ErrNoBaseURL
	}
	for _, raw := range c.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
		}
	}

	var err error
	if c.CompiledExcluded, err = compilePatterns(c.ExcludedURLs); err != nil {
		return err
	}
	if c.CompiledYanked, err = compilePatterns(c.YankedURLs); err != nil {
		return err
	}

	for i, scheme := range c.Schemes {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		if !slices.Contains(supportedSchemes, scheme) {
			return fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
		}
		c.Schemes[i] = scheme
	}

	for _, name := range c.Plugins {
		if !slices.Contains(DefaultPlugins(), name) {
			return fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
		}
	}

	for scheme, raw := range c.Proxies {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s=%q", ErrInvalidProxy, scheme, raw)
		}
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}

	if c.Wait < 0 {
		return ErrInvalidWait
	}
	if c.RedirectDepth < -1 {
		return ErrInvalidRedirectDepth
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return checkWritable(c.OutputDir)
}

// compilePatterns compiles case-insensitive regular expressions.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// checkWritable creates dir if needed and verifies a file can be created
// in it.
func checkWritable(dir string) error {
	if dir == "" {
		dir = DefaultOutputDir
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputNotWritable, dir, err)
	}
	f, err := os.CreateTemp(dir, ".webcheck-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputNotWritable, dir, err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrOutputNotWritable, dir, err)
	}
	return nil
}
