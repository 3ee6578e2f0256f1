package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the raw retrieval API request.
type SearchRequest struct {
	Query   string   `json:"query"`
	TopK    int      `json:"top_k,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// SearchResult represents one retrieved chunk.
type SearchResult struct {
	ID         int64   `json:"id"`
	SourceType string  `json:"source_type"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// SearchDiagnostics carries the retrieval status reported by the server.
type SearchDiagnostics struct {
	Status   string `json:"status"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// SearchResponse represents the raw retrieval API response.
type SearchResponse struct {
	Success bool              `json:"success"`
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Results []SearchResult    `json:"results"`
	Debug   SearchDiagnostics `json:"debug"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		topK    int
		sources []string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge index",
		Long:  "Searches the portfolio knowledge index using semantic retrieval.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], topK, sources, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of results")
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "Restrict retrieval to source types")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, topK int, sources []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/api/rag/search", SearchRequest{
		Query:   query,
		TopK:    topK,
		Sources: sources,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		if searchResp.Debug.Reason != "" {
			fmt.Printf("Reason: %s\n", searchResp.Debug.Reason)
		}
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(searchResp.Results))
	for i, result := range searchResp.Results {
		fmt.Printf("%d. %s (%.2f)\n", result.Rank, result.Title, result.Similarity)
		content := result.Content
		if len(content) > 120 {
			content = content[:117] + "..."
		}
		fmt.Printf("   %s\n", content)
		fmt.Printf("   Source: %s, ID: %d\n", result.SourceType, result.ID)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if searchResp.Debug.Fallback {
		fmt.Println("\nNote: keyword fallback was used for this query.")
	}

	return nil
}
