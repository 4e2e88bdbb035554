// Command parkgate runs the parking gate server and its admin tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

func defaultConfigPath() string {
	if p := os.Getenv("PARKGATE_CONFIG"); p != "" {
		return p
	}
	return "parkgate.yaml"
}

var rootCmd = &cobra.Command{
	Use:           "parkgate <command>",
	Short:         "Parking gate vehicle lifecycle and billing server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the config file (.yaml, .toml or legacy .json)")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
