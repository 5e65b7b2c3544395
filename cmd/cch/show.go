package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/index"
	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	var limit, offset int
	var full bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session's metadata and transcript",
		Args:  cobra.ExactArgs(1),
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

			s, err := db.GetSession(args[0])
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("session %q not found", args[0])
			}

			fmt.Printf("Session:   %s (%s)\n", s.SessionID, s.Provider)
			fmt.Printf("Project:   %s\n", s.ProjectName)
			fmt.Printf("File:      %s\n", s.FilePath)
			fmt.Printf("Created:   %s\n", s.CreatedAt)
			fmt.Printf("Modified:  %s\n", s.ModifiedAt)
			fmt.Printf("Messages:  %s (%d user, %d assistant, %d tool calls)\n",
				humanize.Comma(int64(s.MessageCount)),
				s.UserMessageCount, s.AssistantMessageCount, s.ToolCallCount)
			fmt.Printf("Tokens:    %s in, %s out\n",
				humanize.Comma(int64(s.TotalInputTokens)),
				humanize.Comma(int64(s.TotalOutputTokens)))
			if s.ModelsUsed != "" {
				fmt.Printf("Models:    %s\n", s.ModelsUsed)
			}
			if s.GitBranch != "" {
				fmt.Printf("Branch:    %s\n", s.GitBranch)
			}
			if s.Summary != "" {
				fmt.Printf("Summary:   %s\n", s.Summary)
			}
			fmt.Println()

			messages, err := db.GetMessages(s.SessionID, limit, offset)
			if err != nil {
				return err
			}
			for _, m := range messages {
				text := m.ContentText
				if !full {
					text = firstLines(text, 3)
				}
				label := m.Type
				if m.Model != "" {
					label += " " + m.Model
				}
				fmt.Printf("[%d] %s %s\n", m.SequenceNum, m.Timestamp, label)
				if text != "" {
					fmt.Println(indent(text, "    "))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max messages (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Message offset")
	cmd.Flags().BoolVar(&full, "full", false, "Print full message bodies")
	return cmd
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
