package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// LogRequest represents the create-entry API request.
type LogRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic *bool  `json:"is_public,omitempty"`
}

// LogEntry represents one learning log entry returned by the API.
type LogEntry struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	IsPublic  bool   `json:"is_public"`
	CreatedAt string `json:"created_at"`
}

// LogCmd creates the log command with add and list subcommands.
func LogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Manage learning log entries",
	}

	cmd.AddCommand(logAddCmd())
	cmd.AddCommand(logListCmd())

	return cmd
}

func logAddCmd() *cobra.Command {
	var (
		content string
		private bool
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a learning log entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runLogAdd(cmd, args[0], content, private, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&content, "content", "c", "", "Entry content (required)")
	cmd.Flags().BoolVar(&private, "private", false, "Keep the entry out of the public portfolio")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func runLogAdd(cmd *cobra.Command, title, content string, private, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	isPublic := !private
	resp, err := api.Post("/api/entries", LogRequest{
		Title:    title,
		Content:  content,
		IsPublic: &isPublic,
	})
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}

	var entry LogEntry
	if err := json.Unmarshal(resp.Data, &entry); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Created entry %d: %s\n", entry.ID, entry.Title)
	return nil
}

func logListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List public learning log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runLogList(cmd, limit, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")

	return cmd
}

func runLogList(cmd *cobra.Command, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/api/entries?limit=%d", limit))
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	var entries []LogEntry
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No entries yet.")
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("%d. %s (%s)\n", entry.ID, entry.Title, entry.CreatedAt)
	}
	return nil
}
