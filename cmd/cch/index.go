package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/index"
	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Scan and index Claude Code, Codex, and Gemini CLI conversation logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			fmt.Fprintf(os.Stderr, "Scanning roots...\n")
			fmt.Fprintf(os.Stderr, "  Claude: %s\n", cfg.ClaudeRoot)
			fmt.Fprintf(os.Stderr, "  Codex:  %s\n", cfg.CodexRoot)
			fmt.Fprintf(os.Stderr, "  Gemini: %s\n", cfg.GeminiRoot)

			opts := index.Options{
				Force: force,
				Progress: func(current, total int, message string) {
					fmt.Fprintf(os.Stderr, "\r[%d/%d] %-40s", current, total, message)
				},
			}
			res, err := index.IndexAll(db, cfg, opts)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Done. %s indexed, %s skipped, %s failed, %s pruned, %s messages\n",
				humanize.Comma(int64(res.FilesIndexed)),
				humanize.Comma(int64(res.FilesSkipped)),
				humanize.Comma(int64(res.FilesFailed)),
				humanize.Comma(int64(res.FilesPruned)),
				humanize.Comma(int64(res.TotalMessages)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reindex all sessions, ignoring file fingerprints")
	return cmd
}
