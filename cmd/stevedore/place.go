package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stevedore-io/stevedore/pkg/client"
	"github.com/stevedore-io/stevedore/pkg/types"
)

var (
	placeFile   string
	reportFile  string
	outcomeHost string
	journalMax  int
)

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Submit a placement request from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var spec types.RequestSpec
		if err := loadYAML(placeFile, &spec); err != nil {
			return err
		}
		p, err := client.New(serverAddr).Place(context.Background(), &spec)
		if err != nil {
			return err
		}
		fmt.Printf("Request %s dispatched to %s (attempt %d)\n", p.RequestID, p.Backend(), p.Attempt)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Push one or more capability reports from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var reports []types.CapabilityReport
		if err := loadYAML(reportFile, &reports); err != nil {
			return err
		}
		c := client.New(serverAddr)
		for i := range reports {
			state, err := c.Report(context.Background(), &reports[i])
			if err != nil {
				return fmt.Errorf("report for %s: %w", reports[i].Key(), err)
			}
			fmt.Printf("Applied report for %s (free=%s total=%s)\n",
				state.Key(), state.FreeCapacity, state.TotalCapacity)
		}
		return nil
	},
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome <request-id> <success|retryable_failure|fatal_failure> [detail]",
	Short: "Report a worker outcome for a dispatched placement",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := &types.Outcome{
			RequestID: args[0],
			Host:      outcomeHost,
			Status:    types.OutcomeStatus(args[1]),
		}
		if len(args) == 3 {
			o.Detail = args[2]
		}
		res, err := client.New(serverAddr).ReportOutcome(context.Background(), o)
		if err != nil {
			return err
		}
		switch {
		case res.Error != "":
			fmt.Printf("Request %s: %s (%s)\n", res.RequestID, res.State, res.Error)
		case res.Placement != nil:
			fmt.Printf("Request %s: %s on %s (attempt %d)\n",
				res.RequestID, res.State, res.Placement.Backend(), res.Placement.Attempt)
		default:
			fmt.Printf("Request %s: %s\n", res.RequestID, res.State)
		}
		return nil
	},
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show recent scheduling decisions from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := client.New(serverAddr).Decisions(context.Background(), journalMax)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Error != "" {
				fmt.Printf("%s  %s  FAILED: %s\n", e.Timestamp.Format("15:04:05"), e.RequestID, e.Error)
				continue
			}
			fmt.Printf("%s  %s  -> %s (attempt %d)\n", e.Timestamp.Format("15:04:05"), e.RequestID, e.Backend, e.Attempt)
		}
		return nil
	},
}

func init() {
	placeCmd.Flags().StringVarP(&placeFile, "file", "f", "", "YAML file with the request spec")
	placeCmd.MarkFlagRequired("file")
	reportCmd.Flags().StringVarP(&reportFile, "file", "f", "", "YAML file with a list of capability reports")
	reportCmd.MarkFlagRequired("file")
	outcomeCmd.Flags().StringVar(&outcomeHost, "host", "", "Host the outcome is about")
	outcomeCmd.MarkFlagRequired("host")
	decisionsCmd.Flags().IntVarP(&journalMax, "limit", "n", 20, "Maximum entries to show")
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
