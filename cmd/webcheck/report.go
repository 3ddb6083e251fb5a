package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcheck/internal/config"
	"github.com/nao1215/webcheck/internal/database"
	"github.com/nao1215/webcheck/internal/pipeline"
)

// errNoCrawl is returned when the database holds no crawl to report on.
var errNoCrawl = errors.New("no stored crawl found")

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [URL...]",
		Short: "Regenerate the reports of a stored crawl",
		Long: `Report renders the reports again from the crawl database in the output
directory, without fetching anything. Use it to change report settings
such as the plugins or the site map depth after a crawl.

The base URLs must be the ones the crawl started from; they root the
site map.

Examples:
  # Regenerate the reports in ./report
  webcheck report -o report https://example.com/

  # Only regenerate the bad links report and export JSON
  webcheck report -o report --plugins badlinks --json https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runReportCmd,
	}

	addConfigFlags(cmd)

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	return runReport(cmd.Context(), cfg, logger, cmd.OutOrStdout())
}

// runReport restores the stored graph and writes the reports and a summary
// on out.
func runReport(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.OutputDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sess, err := pipeline.NewSession(cfg, db, logger)
	if err != nil {
		return err
	}
	n, err := db.LoadGraph(ctx, sess.Graph)
	if err != nil {
		return fmt.Errorf("failed to load crawl: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w in %s", errNoCrawl, db.Path())
	}
	logger.Info("crawl loaded", "links", n)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewDepthStep(logger),
		pipeline.NewReportStep(
			pipeline.WithReportLogger(logger),
			pipeline.WithReportVersion(getVersion()),
		),
	)
	if err := p.Execute(ctx, sess); err != nil {
		return err
	}

	return printSummary(ctx, sess, out)
}
