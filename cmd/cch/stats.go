package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/index"
	"github.com/spf13/cobra"
)

var heatmapDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// heatmapGlyphs maps activity intensity to a display character, lowest first.
var heatmapGlyphs = []rune{' ', '.', ':', '*', '#'}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index totals and a weekday/hour activity heatmap",
		Args:  cobra.NoArgs,
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

			st, err := db.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Projects:   %s\n", humanize.Comma(int64(st.ProjectCount)))
			fmt.Printf("Sessions:   %s\n", humanize.Comma(int64(st.SessionCount)))
			fmt.Printf("Messages:   %s\n", humanize.Comma(int64(st.MessageCount)))
			fmt.Printf("Tool calls: %s\n", humanize.Comma(int64(st.ToolCallCount)))
			fmt.Printf("Tokens:     %s in, %s out\n",
				humanize.Comma(st.TotalInputTokens), humanize.Comma(st.TotalOutputTokens))

			counts, err := db.HeatmapCounts()
			if err != nil {
				return err
			}
			max := 0
			for _, day := range counts {
				for _, n := range day {
					if n > max {
						max = n
					}
				}
			}
			if max == 0 {
				return nil
			}

			fmt.Println("\nActivity by hour (local timestamps as recorded):")
			fmt.Println("      0         6         12        18      23")
			for d, day := range counts {
				row := make([]rune, 24)
				for h, n := range day {
					row[h] = glyph(n, max)
				}
				fmt.Printf("  %s [%s]\n", heatmapDays[d], string(row))
			}
			return nil
		},
	}
}

func glyph(n, max int) rune {
	if n == 0 {
		return heatmapGlyphs[0]
	}
	idx := 1 + n*(len(heatmapGlyphs)-2)/max
	if idx >= len(heatmapGlyphs) {
		idx = len(heatmapGlyphs) - 1
	}
	return heatmapGlyphs[idx]
}
