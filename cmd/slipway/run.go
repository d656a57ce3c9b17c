package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/slipway-dev/slipway/internal/changes"
	"github.com/slipway-dev/slipway/internal/cluster/helm"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/executor"
	"github.com/slipway-dev/slipway/internal/registry/docker"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/slipway-dev/slipway/internal/service"
)

func runCmd() *cobra.Command {
	var (
		configPath string
		repoDir    string
		oldRev     string
		newRev     string
		branch     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for a revision range",
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
				// No safe default exists without a resolvable diff: the
				// whole run aborts before any pipeline starts.
				return fmt.Errorf("detecting changes: %w", err)
			}

			if len(cfg.TriggerPaths) > 0 && !changes.Intersects(cs.ModifiedPaths, cfg.TriggerPaths) {
				slog.Info("modified paths do not intersect trigger paths, pipeline not activated")
				return nil
			}

			creds := credentialsFromEnv()
			reg := docker.NewProvider()
			if creds.RegistryToken != "" {
				if err := reg.Login(ctx, cfg.Registry, creds); err != nil {
					return err
				}
			}
			clu := helm.NewProvider(repoDir, creds)

			orchestrator := executor.NewOrchestrator(cfg, reg, clu, repoDir, executor.NewServicePipeline)
			summary, err := orchestrator.Run(ctx, cs, branch, oldRev, newRev)
			if err != nil {
				return err
			}

			sinks := []report.Sink{&report.TableSink{W: os.Stdout}}
			if summary.RunDir != "" {
				sinks = append(sinks, &report.FileSink{Path: filepath.Join(summary.RunDir, "run.json")})
			}
			report.Publish(summary, sinks...)

			if code := report.ExitCode(summary); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "pipeline config file")
	cmd.Flags().StringVar(&repoDir, "repo", ".", "repository root")
	cmd.Flags().StringVar(&oldRev, "from", "", "old revision identifier")
	cmd.Flags().StringVar(&newRev, "to", "", "new revision identifier")
	cmd.Flags().StringVar(&branch, "branch", "", "triggering branch name")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}
