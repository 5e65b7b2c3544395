package main

import (
	"fmt"
	"strings"

	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/index"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var projectID, provider, model, sortBy string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed sessions, newest first",
		Long: `Lists sessions as TSV, one per line:
  sessionId, modifiedAt, provider, project, messages, tools, firstPrompt

Sort keys: created_at, modified_at, message_count, tool_call_count, total_output_tokens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, total, err := db.ListSessions(index.ListOptions{
				ProjectID: projectID,
				Provider:  provider,
				Model:     model,
				SortBy:    sortBy,
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return err
			}

			for _, s := range sessions {
				prompt := strings.ReplaceAll(s.FirstPrompt, "\t", " ")
				prompt = strings.ReplaceAll(prompt, "\n", " ")
				project := s.ProjectName
				if project == "" {
					project = "-"
				}
				fmt.Printf("%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					s.SessionID, s.ModifiedAt, s.Provider, project,
					s.MessageCount, s.ToolCallCount, prompt)
			}
			if total > len(sessions) {
				fmt.Printf("# %d of %d sessions (use --offset to page)\n", len(sessions), total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Filter by project id")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider (claude/codex/gemini)")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model name")
	cmd.Flags().StringVar(&sortBy, "sort", "modified_at", "Sort key")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max sessions")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset for paging")
	return cmd
}
