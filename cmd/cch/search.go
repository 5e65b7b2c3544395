package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/index"
	"github.com/mdemirhan/cch/internal/search"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	colorReset   = "\033[0m"
	colorBoldRed = "\033[1;31m"
	colorBlue    = "\033[1;34m"
	colorGreen   = "\033[1;32m"
	colorYellow  = "\033[1;33m"
	colorDim     = "\033[2m"
)

func colorizeProvider(provider string, color bool) string {
	if !color {
		return provider
	}
	switch provider {
	case "claude":
		return colorBlue + provider + colorReset
	case "codex":
		return colorGreen + provider + colorReset
	case "gemini":
		return colorYellow + provider + colorReset
	default:
		return provider
	}
}

func colorizeSnippet(snippet string, color bool) string {
	if !color {
		snippet = strings.ReplaceAll(snippet, "<mark>", "")
		return strings.ReplaceAll(snippet, "</mark>", "")
	}
	snippet = strings.ReplaceAll(snippet, "<mark>", colorBoldRed)
	return strings.ReplaceAll(snippet, "</mark>", colorReset)
}

func searchCmd() *cobra.Command {
	var categories, providers []string
	var projectID, projectQuery string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across indexed conversations",
		Long: `Search indexed messages using FTS5. Output is TSV, one hit per line:
  sessionId, messageUuid, timestamp, provider, project, type, snippet

Categories: user, assistant, tool_call, thinking, tool_result, system.`,
		Args: cobra.ExactArgs(1),
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

			eng := search.NewEngine(db)
			res, err := eng.Search(search.Options{
				Query:        args[0],
				Categories:   categories,
				ProjectID:    projectID,
				Providers:    providers,
				ProjectQuery: projectQuery,
				Limit:        limit,
				Offset:       offset,
			})
			if err != nil {
				return err
			}

			if len(res.Results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			color := term.IsTerminal(int(os.Stdout.Fd()))
			for _, r := range res.Results {
				snippet := strings.ReplaceAll(r.Snippet, "\t", " ")
				snippet = strings.ReplaceAll(snippet, "\n", " ")
				project := r.ProjectName
				if project == "" {
					project = "-"
				}
				// first two fields stay plain for fzf {1} {2}
				fmt.Printf("%s\t%s\t%s%s%s\t%s\t%s\t%s\t%s\n",
					r.SessionID,
					r.MessageUUID,
					dim(color), r.Timestamp, reset(color),
					colorizeProvider(r.Provider, color),
					project,
					r.MessageType,
					colorizeSnippet(snippet, color),
				)
			}
			fmt.Fprintf(os.Stderr, "%d of %d results\n", len(res.Results), res.TotalCount)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&categories, "category", nil, "Filter by category (repeatable)")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "Filter by provider (claude/codex/gemini)")
	cmd.Flags().StringVar(&projectID, "project", "", "Filter by project id")
	cmd.Flags().StringVar(&projectQuery, "project-query", "", "Filter by project name substring")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset for paging")
	return cmd
}

func dim(color bool) string {
	if color {
		return colorDim
	}
	return ""
}

func reset(color bool) string {
	if color {
		return colorReset
	}
	return ""
}
