package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/crawler"
	"github.com/JakeFAU/websearch/internal/politeness"
)

// newCrawlCmd creates the 'crawl' subcommand. Without --seed it crawls the sitemap.
func newCrawlCmd() *cobra.Command {
	var (
		seeds    []string
		force    bool
		maxPages int
		minDelay time.Duration
		maxDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the sitemap or the given seeds",
		Long: `Fetches pages breadth-first, starting from the pending sitemap URLs
(or every active one with --force, or the --seed URLs instead), and stores
every link it finds for the indexer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config().Crawler
			opts := crawler.Options{MaxPages: cfg.MaxPages}
			if cmd.Flags().Changed("max-pages") {
				opts.MaxPages = maxPages
			}
			opts.Delay = delayFlags(cmd, minDelay, maxDelay, cfg.MinDelay, cfg.MaxDelay)

			var res crawler.Result
			if len(seeds) > 0 {
				res, err = appInstance.Crawler().Crawl(cmd.Context(), seeds, opts)
			} else {
				res, err = appInstance.Crawler().CrawlSitemap(cmd.Context(), force, opts)
			}
			if err != nil {
				appInstance.Logger().Error("crawl failed", zap.String("run_id", res.RunID), zap.Error(err))
				return fmt.Errorf("crawl: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: fetched %d, failed %d, disallowed %d, discovered %d (%d new)\n",
				res.RunID, res.Fetched, res.Failed, res.Disallowed, len(res.Discovered), res.Stored)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&seeds, "seed", nil, "crawl from these URLs instead of the sitemap")
	cmd.Flags().BoolVar(&force, "force", false, "recrawl every active sitemap URL, not only pending ones")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to fetch (default from config)")
	cmd.Flags().DurationVar(&minDelay, "min-delay", 0, "minimum pause between requests (default from config)")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", 0, "maximum pause between requests (default from config)")
	return cmd
}

// delayFlags returns the run's delay range, or nil when neither flag was given.
// An unset flag keeps its configured value and a minimum above the maximum
// lifts the maximum.
func delayFlags(cmd *cobra.Command, minFlag, maxFlag, minCfg, maxCfg time.Duration) *politeness.DelayRange {
	if !cmd.Flags().Changed("min-delay") && !cmd.Flags().Changed("max-delay") {
		return nil
	}
	lo, hi := minCfg, maxCfg
	if cmd.Flags().Changed("min-delay") {
		lo = minFlag
	}
	if cmd.Flags().Changed("max-delay") {
		hi = maxFlag
	}
	if hi < lo {
		hi = lo
	}
	return &politeness.DelayRange{Min: lo, Max: hi}
}
