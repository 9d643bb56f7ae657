package cli

import (
	"fmt"
	"os"

	"github.com/connectry/connectry/internal/initialization"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "connectry",
		Short: "Connectry connector CLI",
		Long: `Connectry manages OAuth-style credentials for third-party-service connectors
and calls external APIs through a shared resilient request engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	container, err := initialization.NewContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize connector container: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(NewStatusCommand(container))
	rootCmd.AddCommand(NewRefreshCommand(container))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
