package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stevedore",
	Short: "Stevedore - filter-and-weigh storage placement scheduler",
	Long: `Stevedore schedules storage volumes onto back-end hosts. Back ends
push periodic capability reports; placement requests are filtered
against hard constraints, weighed, and dispatched to the best-ranked
backend, with bounded retries down the ranking on failure.`,
	Version: Version,
}

var serverAddr string

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Stevedore version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8780", "Scheduler API address")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backendCmd)
	rootCmd.AddCommand(placeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(decisionsCmd)
	rootCmd.AddCommand(simulateCmd)
}
