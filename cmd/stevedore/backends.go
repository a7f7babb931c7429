package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stevedore-io/stevedore/pkg/client"
	"github.com/stevedore-io/stevedore/pkg/types"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Inspect and manage storage back ends",
}

var backendListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known back ends",
	RunE: func(cmd *cobra.Command, args []string) error {
		states, err := client.New(serverAddr).Backends(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "BACKEND\tZONE\tFREE\tTOTAL\tVOLUMES\tSTATE")
		for _, s := range states {
			state := string(s.ServiceState)
			if s.Disabled {
				state = "disabled"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.Key(), s.AvailabilityZone, s.FreeCapacity, s.TotalCapacity, s.VolumeCount, state)
		}
		return w.Flush()
	},
}

var backendPool string

var backendShowCmd = &cobra.Command{
	Use:   "show <host>",
	Short: "Show one back end including its declared capabilities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := client.New(serverAddr).Backend(context.Background(), args[0], backendPool)
		if err != nil {
			return err
		}
		printBackend(state)
		return nil
	},
}

var backendDisableCmd = &cobra.Command{
	Use:   "disable <host>",
	Short: "Exclude a host's pools from scheduling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.New(serverAddr).SetBackendDisabled(context.Background(), args[0], true)
	},
}

var backendEnableCmd = &cobra.Command{
	Use:   "enable <host>",
	Short: "Return a host's pools to scheduling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.New(serverAddr).SetBackendDisabled(context.Background(), args[0], false)
	},
}

func init() {
	backendShowCmd.Flags().StringVar(&backendPool, "pool", "", "Pool within the host")
	backendCmd.AddCommand(backendListCmd)
	backendCmd.AddCommand(backendShowCmd)
	backendCmd.AddCommand(backendDisableCmd)
	backendCmd.AddCommand(backendEnableCmd)
}

func printBackend(s *types.HostState) {
	fmt.Printf("Backend:  %s\n", s.Key())
	fmt.Printf("Zone:     %s\n", s.AvailabilityZone)
	fmt.Printf("Capacity: free=%s total=%s provisioned=%.1f reserved=%d%%\n",
		s.FreeCapacity, s.TotalCapacity, s.ProvisionedCapacity, s.ReservedPercentage)
	fmt.Printf("Thin:     supported=%v ratio=%.1f\n", s.ThinProvisioningSupport, s.MaxOverSubscriptionRatio)
	fmt.Printf("Driver:   %s %s (%s, %s)\n", s.VendorName, s.DriverVersion, s.VolumeBackendName, s.StorageProtocol)
	fmt.Printf("Volumes:  %d\n", s.VolumeCount)
	fmt.Printf("Updated:  %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
	if len(s.Capabilities) > 0 {
		fmt.Println("Capabilities:")
		for k, v := range s.Capabilities {
			fmt.Printf("  %s: %s\n", k, v)
		}
	}
}
