package main

import (
	"fmt"

	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/index"
	"github.com/spf13/cobra"
)

func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List indexed projects with activity rollups",
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

			projects, err := db.ListProjects()
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Printf("%s\t%s\t%s\t%d\t%s\t%s\n",
					p.ProjectID, p.Provider, p.ProjectName,
					p.SessionCount, p.FirstActivity, p.LastActivity)
			}
			return nil
		},
	}
}
