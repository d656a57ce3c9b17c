package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/slipway-dev/slipway/internal/changes"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/service"
)

func changesCmd() *cobra.Command {
	var (
		configPath string
		repoDir    string
		oldRev     string
		newRev     string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show which services a revision range would trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.LoadPipelineConfig(configPath)
			if err != nil {
				return err
			}

			descriptors, err := service.Load(ctx, cfg, repoDir)
			if err != nil {
				return err
			}

			differ := &changes.GitDiffer{RepoDir: repoDir}
			cs, err := changes.Detect(ctx, differ, descriptors, cfg.SharedPaths, oldRev, newRev)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(cs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if cs.Empty() {
				fmt.Println("no services changed")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Service", "Namespace", "Source Paths"})
			for _, svc := range cs.Services {
				t.AppendRow(table.Row{svc.Name, svc.Namespace, fmt.Sprintf("%v", svc.SourcePaths)})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "pipeline config file")
	cmd.Flags().StringVar(&repoDir, "repo", ".", "repository root")
	cmd.Flags().StringVar(&oldRev, "from", "", "old revision identifier")
	cmd.Flags().StringVar(&newRev, "to", "", "new revision identifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}
