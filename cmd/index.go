package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/websearch/internal/crawler"
	"github.com/JakeFAU/websearch/internal/indexer"
)

// newIndexCmd creates the 'index' subcommand. Without arguments it indexes the
// oldest discovered URLs that are not indexed yet.
func newIndexCmd() *cobra.Command {
	var (
		maxPages int
		minDelay time.Duration
		maxDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "index [URL...]",
		Short: "Index discovered pages or the given URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config().Indexer
			opts := indexer.Options{MaxPages: cfg.MaxPages}
			if cmd.Flags().Changed("max-pages") {
				opts.MaxPages = maxPages
			}
			opts.Delay = delayFlags(cmd, minDelay, maxDelay, cfg.MinDelay, cfg.MaxDelay)

			var n int
			if len(args) > 0 {
				urls := make([]string, 0, len(args))
				for _, raw := range args {
					url, err := crawler.NormalizeURL(raw)
					if err != nil {
						return fmt.Errorf("%q: %w", raw, err)
					}
					urls = append(urls, url)
				}
				n, err = appInstance.Indexer().BatchIndex(cmd.Context(), urls, opts)
			} else {
				n, err = appInstance.Indexer().IndexPending(cmd.Context(), opts)
			}
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d pages\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to index (default from config)")
	cmd.Flags().DurationVar(&minDelay, "min-delay", 0, "minimum pause between requests (default from config)")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", 0, "maximum pause between requests (default from config)")
	return cmd
}
