// Package main is the entry point for the tripweaver CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	configFile    string
	verbose       bool
	correlationID string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tripweaver",
		Short: "Conversational travel planning orchestrator",
		Long: `TripWeaver turns a travel-planning conversation into searches.
It tracks trip details across turns, re-runs only the searches whose
inputs changed, and assembles flight, hotel, and experience results
into ranked trip packages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "Set explicit correlation ID")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
