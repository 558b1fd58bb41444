package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/websearch/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		maxResults int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Query the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			limit := appInstance.Config().Search.MaxResults
			if cmd.Flags().Changed("max-results") {
				limit = maxResults
			}
			results, err := appInstance.Search().Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(toJSON(results))
			}
			printResults(cmd, results)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "maximum results to return (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

type resultJSON struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	Snippet        string `json:"snippet"`
	MatchingTerms  int    `json:"matching_terms"`
	RelevanceScore int    `json:"relevance_score"`
}

func toJSON(results []search.Result) []resultJSON {
	out := make([]resultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, resultJSON{
			URL:            r.URL,
			Title:          r.Title,
			Snippet:        r.Snippet,
			MatchingTerms:  r.MatchingTerms,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return out
}

func printResults(cmd *cobra.Command, results []search.Result) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return
	}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", r.Snippet)
		}
		fmt.Fprintf(out, "   matching terms: %d, score: %d\n", r.MatchingTerms, r.RelevanceScore)
	}
}
