package config

import "errors"

// Configuration validation errors.
// They are returned by Config.Validate, possibly wrapped with the offending
// value, so callers can match them with errors.Is.
var (
	// ErrNoBaseURL is returned when no URL to check was given.
	ErrNoBaseURL = errors.New("no base URL specified: provide at least one URL to check")

	// ErrInvalidBaseURL is returned for a base URL without a scheme or that
	// cannot be parsed.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidPattern is returned when an excluded or yanked pattern is not
	// a valid regular expression.
	ErrInvalidPattern = errors.New("invalid URL pattern")

	// ErrUnknownScheme is returned when a scheme without a fetcher is listed.
	ErrUnknownScheme = errors.New("unsupported scheme")

	// ErrInvalidProxy is returned for a proxy entry that is not a URL.
	ErrInvalidProxy = errors.New("invalid proxy")

	// ErrInvalidWait is returned when the wait between requests is negative.
	ErrInvalidWait = errors.New("invalid wait between requests: must be non-negative")

	// ErrInvalidRedirectDepth is returned for redirect depths below -1.
	ErrInvalidRedirectDepth = errors.New("invalid redirect depth: must be -1 (unlimited) or more")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidLogFormat is returned for a log format other than text or
	// json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrUnknownPlugin is returned when a report plugin name is not known.
	ErrUnknownPlugin = errors.New("unknown report plugin")

	// ErrOutputNotWritable is returned when the output directory cannot be
	// created or written to.
	ErrOutputNotWritable = errors.New("output directory is not writable")
)
