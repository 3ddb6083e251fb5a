package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webcheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webcheck",
		Short: "Website link checker",
		Long: `webcheck crawls a website starting from one or more base URLs, checks
every link it finds and writes Markdown reports about the site.

Links are checked over http, https, ftp and file. robots.txt is honored.
The crawl result is stored in an SQLite database next to the reports, so
an interrupted crawl can be continued and reports can be regenerated.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
