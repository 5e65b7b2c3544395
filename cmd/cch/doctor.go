package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/index"
	"github.com/mdemirhan/cch/internal/scan"
	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify roots, DB, FTS5, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Roots ===")
			checkDir("Claude", cfg.ClaudeRoot)
			checkDir("Codex", cfg.CodexRoot)
			checkDir("Gemini", cfg.GeminiRoot)

			fmt.Println("\n=== Discovery ===")
			counts := map[string]int{}
			for _, s := range scan.Discover(cfg) {
				counts[s.Provider]++
			}
			fmt.Printf("  Claude sessions: %d\n", counts["claude"])
			fmt.Printf("  Codex  sessions: %d\n", counts["codex"])
			fmt.Printf("  Gemini sessions: %d\n", counts["gemini"])

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'cch index' first)")
				return nil
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			st, err := db.Stats()
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			fmt.Printf("  Projects:   %s\n", humanize.Comma(int64(st.ProjectCount)))
			fmt.Printf("  Sessions:   %s\n", humanize.Comma(int64(st.SessionCount)))
			fmt.Printf("  Messages:   %s\n", humanize.Comma(int64(st.MessageCount)))
			fmt.Printf("  Tool calls: %s\n", humanize.Comma(int64(st.ToolCallCount)))
			fmt.Printf("  Tokens:     %s in, %s out\n",
				humanize.Comma(st.TotalInputTokens), humanize.Comma(st.TotalOutputTokens))

			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			err = db.Raw().QueryRow("SELECT COUNT(*) FROM messages_fts").Scan(&ftsCount)
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == st.MessageCount {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (messages=%d, fts=%d)\n", st.MessageCount, ftsCount)
				}
			}

			fmt.Println("\n=== Top Tools ===")
			tools, err := db.ToolUsage(10)
			if err != nil {
				fmt.Printf("  error: %v\n", err)
			}
			for _, t := range tools {
				fmt.Printf("  %-20s %s\n", t.ToolName, humanize.Comma(int64(t.Count)))
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				fmt.Printf("\n=== DB Size: %s ===\n", humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
