package config

import "time"

// File represents the structure of a webcheck.yaml configuration file.
// Every field is optional; unset fields keep the values already present in
// the Config the file is applied to.
type File struct {
	// BaseURLs are checked when none are given on the command line.
	BaseURLs []string `yaml:"base_urls,omitempty"`

	BaseURLsOnly       *bool             `yaml:"base_urls_only,omitempty"`
	ExcludedURLs       []string          `yaml:"excluded_urls,omitempty"`
	YankedURLs         []string          `yaml:"yanked_urls,omitempty"`
	AvoidExternalLinks *bool             `yaml:"avoid_external_links,omitempty"`
	Schemes            []string          `yaml:"schemes,omitempty"`
	Proxies            map[string]string `yaml:"proxies,omitempty"`
	Headers            map[string]string `yaml:"headers,omitempty"`
	Hosts              []string          `yaml:"hosts,omitempty"`
	OutputDir          string            `yaml:"output_dir,omitempty"`

	// WaitBetweenRequests accepts Go duration syntax such as "500ms".
	WaitBetweenRequests *time.Duration `yaml:"wait_between_requests,omitempty"`

	RedirectDepth *int           `yaml:"redirect_depth,omitempty"`
	DebugLevel    *int           `yaml:"debug_level,omitempty"`
	LogFormat     string         `yaml:"log_format,omitempty"`
	Workers       *int           `yaml:"workers,omitempty"`
	Timeout       *time.Duration `yaml:"timeout,omitempty"`
	UserAgent     string         `yaml:"user_agent,omitempty"`

	// Reports holds the report plugin settings.
	Reports ReportFile `yaml:"reports,omitempty"`
}

// ReportFile holds the report section of the configuration file.
type ReportFile struct {
	Plugins []string `yaml:"plugins,omitempty"`

	// OldAgeDays and NewAgeDays are given in days, like the historical
	// REPORT_WHATSOLD_URL_AGE and REPORT_WHATSNEW_URL_AGE settings.
	OldAgeDays   *int `yaml:"old_age_days,omitempty"`
	NewAgeDays   *int `yaml:"new_age_days,omitempty"`
	SlowSize     *int `yaml:"slow_size_kb,omitempty"`
	SitemapLevel *int `yaml:"sitemap_level,omitempty"`
}

// Apply copies every field set in f onto c. Maps are merged, lists replace
// the current value.
func (f *File) Apply(c *Config) {
	if len(f.BaseURLs) > 0 {
		c.BaseURLs = append([]string(nil), f.BaseURLs...)
	}
	if f.BaseURLsOnly != nil {
		c.BaseURLsOnly = *f.BaseURLsOnly
	}
	if len(f.ExcludedURLs) > 0 {
		c.ExcludedURLs = append([]string(nil), f.ExcludedURLs...)
	}
	if len(f.YankedURLs) > 0 {
		c.YankedURLs = append([]string(nil), f.YankedURLs...)
	}
	if f.AvoidExternalLinks != nil {
		c.AvoidExternalLinks = *f.AvoidExternalLinks
	}
	if len(f.Schemes) > 0 {
		c.Schemes = append([]string(nil), f.Schemes...)
	}
	c.Proxies = mergeMap(c.Proxies, f.Proxies)
	c.Headers = mergeMap(c.Headers, f.Headers)
	if len(f.Hosts) > 0 {
		c.Hosts = append([]string(nil), f.Hosts...)
	}
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
	if f.WaitBetweenRequests != nil {
		c.Wait = *f.WaitBetweenRequests
	}
	if f.RedirectDepth != nil {
		c.RedirectDepth = *f.RedirectDepth
	}
	if f.DebugLevel != nil {
		c.DebugLevel = *f.DebugLevel
	}
	if f.LogFormat != "" {
		c.LogFormat = f.LogFormat
	}
	if f.Workers != nil {
		c.Workers = *f.Workers
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}

	r := f.Reports
	if len(r.Plugins) > 0 {
		c.Plugins = append([]string(nil), r.Plugins...)
	}
	if r.OldAgeDays != nil {
		c.OldAge = time.Duration(*r.OldAgeDays) * 24 * time.Hour
	}
	if r.NewAgeDays != nil {
		c.NewAge = time.Duration(*r.NewAgeDays) * 24 * time.Hour
	}
	if r.SlowSize != nil {
		c.SlowSize = *r.SlowSize
	}
	if r.SitemapLevel != nil {
		c.SitemapLevel = *r.SitemapLevel
	}
}

func mergeMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
