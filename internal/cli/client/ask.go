package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AskRequest represents the chat API request.
type AskRequest struct {
	Question string   `json:"question"`
	TopK     int      `json:"top_k,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

// AskContext represents one grounding block returned with an answer.
type AskContext struct {
	ID           int64  `json:"id"`
	SourceType   string `json:"source_type"`
	Title        string `json:"title"`
	SectionTitle string `json:"section_title,omitempty"`
	ItemTitle    string `json:"item_title,omitempty"`
}

// AskResponse represents the chat API response.
type AskResponse struct {
	Answer            string       `json:"answer"`
	Question          string       `json:"question"`
	ContextUsed       []AskContext `json:"context_used"`
	Confidence        float64      `json:"confidence"`
	FollowUpQuestions []string     `json:"follow_up_questions,omitempty"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		topK    int
		sources []string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a question",
		Long:  "Asks the grounded assistant a question about the learning portfolio.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], topK, sources, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of context chunks to retrieve")
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "Restrict retrieval to source types")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, topK int, sources []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/api/ai/chat", AskRequest{
		Question: question,
		TopK:     topK,
		Sources:  sources,
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse chat response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)

	if len(askResp.ContextUsed) > 0 {
		fmt.Printf("\nGrounded on %d sources (confidence %.2f):\n", len(askResp.ContextUsed), askResp.Confidence)
		for _, ctx := range askResp.ContextUsed {
			label := ctx.Title
			if ctx.SectionTitle != "" && ctx.ItemTitle != "" {
				label = fmt.Sprintf("%s > %s", ctx.SectionTitle, ctx.ItemTitle)
			}
			fmt.Printf("  - [%s] %s\n", ctx.SourceType, label)
		}
	}

	if len(askResp.FollowUpQuestions) > 0 {
		fmt.Println("\nYou could also ask:")
		for _, q := range askResp.FollowUpQuestions {
			fmt.Printf("  - %s\n", q)
		}
	}

	return nil
}
