package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slipway-dev/slipway/internal/models"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Change-driven build, scan and deploy orchestrator",
	Long: `Slipway turns a revision range into deployments: it detects which
services changed, builds and security-gates a container image per changed
service, and deploys only the gated images to their cluster namespaces.
Independent services run in parallel; one aggregate summary reports the run.`,
	SilenceUsage: true,
}

func main() {
	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		slog.Info("interrupt received, shutting down gracefully...", "signal", sig)
		cancel()
	}()

	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(changesCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SLIPWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// credentialsFromEnv reads the run's injected secrets. They live in memory
// for the run only and are never written anywhere.
func credentialsFromEnv() models.Credentials {
	return models.Credentials{
		RegistryUser:  viper.GetString("registry_user"),
		RegistryToken: viper.GetString("registry_token"),
		KubeServer:    viper.GetString("kube_server"),
		KubeToken:     viper.GetString("kube_token"),
		KubeCAFile:    viper.GetString("kube_ca_file"),
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the slipway version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
