package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcheck/internal/config"
	"github.com/nao1215/webcheck/internal/database"
	wclog "github.com/nao1215/webcheck/internal/log"
	"github.com/nao1215/webcheck/internal/pipeline"
	"github.com/nao1215/webcheck/internal/report"
)

// errBadFlagValue is returned for --proxy and --header values that are not
// of the form key=value.
var errBadFlagValue = errors.New("expected key=value")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [URL...]",
		Short: "Crawl a website and report on its links",
		Long: `Crawl checks every link reachable from the given base URLs and writes
the reports and the crawl database to the output directory.

Pages on the hosts of the base URLs are internal: they are fetched and
parsed for further links. Other links are external and only checked.
Base URLs may also come from the configuration file.

Press Ctrl+C to stop early; the links checked so far are still saved and
reported, and --continue picks up where the crawl stopped.

Examples:
  # Check a site
  webcheck crawl https://example.com/

  # Write the reports to ./report and check four links at a time
  webcheck crawl -o report -j 4 https://example.com/

  # Only check below /docs/ and never check the download area
  webcheck crawl -b -y '/downloads/' https://example.com/docs/

  # Continue an interrupted crawl
  webcheck crawl -o report --continue https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	addConfigFlags(cmd)

	cmd.Flags().BoolP("base-only", "b", false,
		"Only consider URLs below the base URLs internal, not every URL on their hosts")
	cmd.Flags().StringArrayP("ignore", "x", nil,
		"Regular expression of URLs to consider external (repeatable)")
	cmd.Flags().StringArrayP("yank", "y", nil,
		"Regular expression of URLs not to check at all (repeatable)")
	cmd.Flags().BoolP("avoid-external", "a", false,
		"Do not check external links")
	cmd.Flags().StringSlice("schemes", config.DefaultSchemes(),
		"URL schemes to check")
	cmd.Flags().StringArray("proxy", nil,
		"Proxy for a scheme as scheme=url, e.g. http=http://proxy:3128 (repeatable)")
	cmd.Flags().StringArray("header", nil,
		"Extra HTTP request header as name=value (repeatable)")
	cmd.Flags().StringArray("host", nil,
		"Additional host name that is part of the site (repeatable)")
	cmd.Flags().DurationP("wait", "w", 0,
		"Minimum time between two requests")
	cmd.Flags().IntP("redirect-depth", "r", config.DefaultRedirectDepth,
		"Longest redirect chain to follow (-1 for unlimited)")
	cmd.Flags().IntP("debug", "d", config.DefaultDebugLevel,
		"Log level: 0 silent, 1 warnings, 2 progress, 3 debug")
	cmd.Flags().IntP("workers", "j", config.DefaultWorkers,
		"Number of links checked at the same time")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for a single request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent sent with HTTP requests and matched in robots.txt")
	cmd.Flags().BoolP("continue", "C", false,
		"Continue the crawl stored in the output directory")

	return cmd
}

// addConfigFlags adds the flags shared by crawl and report.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory for the reports and the crawl database")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: webcheck.yaml in current or XDG config directory)")
	cmd.Flags().Bool("json", false,
		"Also export the link table as JSON")
	cmd.Flags().StringSlice("plugins", config.DefaultPlugins(),
		"Reports to generate")
	cmd.Flags().String("log-format", config.LogFormatText,
		"Log format on stderr: text or json")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing with the links checked so far")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the configuration file and the
// command flags. Flags given on the command line override the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if path := config.FindConfigFile(configPath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
		cfg.ConfigFilePath = path
	} else if configPath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	if len(args) > 0 {
		cfg.BaseURLs = args
	}
	cfg.Verbose = getVerboseFlag(cmd)

	strs := []struct {
		name string
		dst  *string
	}{
		{"output", &cfg.OutputDir},
		{"user-agent", &cfg.UserAgent},
		{"log-format", &cfg.LogFormat},
	}
	for _, f := range strs {
		if flags.Changed(f.name) {
			if *f.dst, err = flags.GetString(f.name); err != nil {
				return nil, err
			}
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"base-only", &cfg.BaseURLsOnly},
		{"avoid-external", &cfg.AvoidExternalLinks},
		{"continue", &cfg.Continue},
		{"json", &cfg.JSONReport},
	}
	for _, f := range bools {
		if flags.Changed(f.name) {
			if *f.dst, err = flags.GetBool(f.name); err != nil {
				return nil, err
			}
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"redirect-depth", &cfg.RedirectDepth},
		{"debug", &cfg.DebugLevel},
		{"workers", &cfg.Workers},
	}
	for _, f := range ints {
		if flags.Changed(f.name) {
			if *f.dst, err = flags.GetInt(f.name); err != nil {
				return nil, err
			}
		}
	}

	if flags.Changed("wait") {
		if cfg.Wait, err = flags.GetDuration("wait"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	// Repeatable patterns and hosts add to the file's lists.
	lists := []struct {
		name string
		dst  *[]string
	}{
		{"ignore", &cfg.ExcludedURLs},
		{"yank", &cfg.YankedURLs},
		{"host", &cfg.Hosts},
	}
	for _, f := range lists {
		if flags.Changed(f.name) {
			values, err := flags.GetStringArray(f.name)
			if err != nil {
				return nil, err
			}
			*f.dst = append(*f.dst, values...)
		}
	}

	if flags.Changed("schemes") {
		if cfg.Schemes, err = flags.GetStringSlice("schemes"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("plugins") {
		if cfg.Plugins, err = flags.GetStringSlice("plugins"); err != nil {
			return nil, err
		}
	}

	pairs := []struct {
		name string
		dst  map[string]string
	}{
		{"proxy", cfg.Proxies},
		{"header", cfg.Headers},
	}
	for _, f := range pairs {
		if !flags.Changed(f.name) {
			continue
		}
		values, err := flags.GetStringArray(f.name)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			key, value, err := parseKeyValue(v)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", f.name, err)
			}
			f.dst[key] = value
		}
	}

	return cfg, nil
}

// parseKeyValue splits "key=value".
func parseKeyValue(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%w, got %q", errBadFlagValue, s)
	}
	return key, strings.TrimSpace(value), nil
}

// setupLogger creates the structured logger for cfg's debug level and log
// format. Credentials in URLs and headers are masked.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogFormat == config.LogFormatJSON {
		return wclog.NewSecureJSONLogger(w, cfg.LogLevel())
	}
	return wclog.NewSecureLogger(w, cfg.LogLevel())
}

// runCrawl crawls the site and writes the database, the reports and a
// summary on out.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	logger.Info("starting crawl",
		"base_urls", cfg.BaseURLs,
		"output", cfg.OutputDir,
		"workers", cfg.Workers,
		"continue", cfg.Continue,
	)

	db, err := database.Open(cfg.OutputDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sess, err := pipeline.NewSession(cfg, db, logger)
	if err != nil {
		return err
	}

	if err := pipeline.DefaultPipeline(logger, getVersion()).Execute(ctx, sess); err != nil {
		return err
	}

	if sess.Stats.Cancelled {
		fmt.Fprintln(out, "Crawl interrupted; run again with --continue to check the remaining links.")
	}
	if !slices.Contains(sess.PerformedSteps, "persist") {
		return nil
	}
	return printSummary(context.WithoutCancel(ctx), sess, out)
}

// printSummary writes the terminal summary of a finished session.
func printSummary(ctx context.Context, sess *pipeline.Session, out io.Writer) error {
	src := &report.Source{
		DB:       sess.DB,
		Graph:    sess.Graph,
		Roots:    sess.Roots,
		BaseURLs: sess.Config.BaseURLs,
		Stats:    sess.Stats,
	}
	reportDir := ""
	if len(sess.Reports) > 0 {
		reportDir = sess.Config.OutputDir
	}
	_, err := report.NewSummaryWriter(out, report.WithVerbose(sess.Config.Verbose)).Write(ctx, src, reportDir)
	return err
}
