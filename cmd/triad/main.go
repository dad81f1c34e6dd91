package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "triad",
		Short:         "Ask the triad ensemble and manage its catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	askCmd = &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt to the running daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Invalidate the daemon's catalog and model caches",
		Args:  cobra.NoArgs,
		RunE:  runRefresh,
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and store statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	importCmd = &cobra.Command{
		Use:   "import [dir]",
		Short: "Import a seed directory straight into the database",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runImport,
	}

	configPath string
	socketPath string
	aiType     string
	mode       string
	jsonOutput bool
	verbose    bool
	prune      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $TRIAD_CONFIG or ~/.triad/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket, overrides the config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON")

	askCmd.Flags().StringVarP(&aiType, "type", "t", "brain", "ai type: brain, heart or system")
	askCmd.Flags().StringVarP(&mode, "mode", "m", "", "mode: standard, professional or advanced")
	askCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show every slot and its routing")

	importCmd.Flags().BoolVar(&prune, "prune", true, "retire rows missing from the seed")

	rootCmd.AddCommand(askCmd, refreshCmd, statsCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "triad: %v\n", err)
		os.Exit(1)
	}
}
