package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/websearch/internal/crawler"
	"github.com/JakeFAU/websearch/internal/store"
)

func newSitemapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Manage the URLs the crawler starts from",
	}
	cmd.AddCommand(newSitemapAddCmd(), newSitemapRemoveCmd(), newSitemapListCmd())
	return cmd
}

func newSitemapAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add URL...",
		Short: "Register URLs, reactivating removed ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, raw := range args {
				url, err := crawler.NormalizeURL(raw)
				if err != nil {
					return fmt.Errorf("%q: %w", raw, store.ErrInvalidURL)
				}
				entry, err := appInstance.Store().AddSitemapURL(cmd.Context(), url, appInstance.Clock().Now())
				if err != nil {
					return fmt.Errorf("add %s: %w", url, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d %s\n", entry.ID, entry.URL)
			}
			return nil
		},
	}
}

func newSitemapRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove URL...",
		Short: "Deactivate URLs; their rows are kept",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, raw := range args {
				url, err := crawler.NormalizeURL(raw)
				if err != nil {
					return fmt.Errorf("%q: %w", raw, store.ErrInvalidURL)
				}
				err = appInstance.Store().RemoveSitemapURL(cmd.Context(), url)
				switch {
				case errors.Is(err, store.ErrNotFound):
					return fmt.Errorf("%s is not in the sitemap", url)
				case err != nil:
					return fmt.Errorf("remove %s: %w", url, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", url)
			}
			return nil
		},
	}
}

func newSitemapListCmd() *cobra.Command {
	var (
		all    bool
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sitemap URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			filter := store.SitemapFilter{ActiveOnly: !all, Status: store.CrawlStatus(status)}
			if status != "" && !filter.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			entries, err := appInstance.Store().ListSitemap(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list sitemap: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "URL", "Status", "Active", "Last Crawled"})
			for _, e := range entries {
				last := "-"
				if e.LastCrawled != nil {
					last = e.LastCrawled.Format(time.RFC3339)
				}
				t.AppendRow(table.Row{e.ID, e.URL, e.Status, e.Active, last})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include removed URLs")
	cmd.Flags().StringVar(&status, "status", "", "only show URLs with this crawl status (pending, crawled, error)")
	return cmd
}
