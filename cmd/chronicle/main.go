package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumenviz/chronicle/internal/cli"
	"github.com/lumenviz/chronicle/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "chronicle",
		Short:   "Record and replay layered visualization sessions",
		Version: version.String(),
		Long: `chronicle captures the update stream feeding a set of visualization
layers and plays it back later: step-grouped capture, binary record files,
and a pausable, steppable replay loop.`,
	}

	rootCmd.AddCommand(cli.DemoCmd())
	rootCmd.AddCommand(cli.ReplayCmd())
	rootCmd.AddCommand(cli.ListCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
