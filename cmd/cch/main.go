package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "cch",
		Short:   "Coding Chat History - index and search Claude Code, Codex, and Gemini CLI conversations",
		Version: version,
	}

	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
