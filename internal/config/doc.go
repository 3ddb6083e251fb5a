// Package config provides the configuration of a webcheck run: the site
// boundary (base URLs, hosts, excluded and yanked patterns), fetch settings
// (schemes, proxies, headers, wait, redirect depth) and report settings.
//
// Values come from NewConfig defaults, an optional webcheck.yaml file and
// command line flags, in that order of precedence (last wins).
package config
