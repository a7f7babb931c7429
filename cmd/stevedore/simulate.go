package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevedore-io/stevedore/pkg/catalog"
	"github.com/stevedore-io/stevedore/pkg/config"
	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/hoststate"
	"github.com/stevedore-io/stevedore/pkg/resolver"
	"github.com/stevedore-io/stevedore/pkg/types"
	"github.com/stevedore-io/stevedore/pkg/weigher"
)

// simulation is the YAML fixture format: a fleet of capability reports
// plus one placement request, optionally with pre-existing volumes for
// affinity hints.
type simulation struct {
	Backends []types.CapabilityReport `yaml:"backends"`
	Volumes  []catalog.VolumeRecord   `yaml:"volumes,omitempty"`
	Request  types.RequestSpec        `yaml:"request"`
}

var (
	simulateFile   string
	simulateConfig string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one placement decision offline against a YAML fixture",
	Long: `Simulate runs the full resolve, filter and weigh pipeline against a
fixture file without a daemon, printing which filters eliminated which
backends and the final ranking. Nothing is dispatched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var sim simulation
		if err := loadYAML(simulateFile, &sim); err != nil {
			return err
		}
		cfg, err := config.Load(simulateConfig)
		if err != nil {
			return err
		}
		return simulate(&sim, cfg)
	},
}

func init() {
	simulateCmd.Flags().StringVarP(&simulateFile, "file", "f", "", "YAML fixture with backends and a request")
	simulateCmd.MarkFlagRequired("file")
	simulateCmd.Flags().StringVarP(&simulateConfig, "config", "c", "", "Optional scheduler configuration file")
}

func simulate(sim *simulation, cfg *config.Config) error {
	repo := hoststate.NewRepository(cfg.Scheduler.LivenessWindow)
	now := time.Now()
	for i := range sim.Backends {
		if sim.Backends[i].Timestamp.IsZero() {
			sim.Backends[i].Timestamp = now
		}
		if _, err := repo.Apply(&sim.Backends[i]); err != nil {
			return fmt.Errorf("backend %s: %w", sim.Backends[i].Key(), err)
		}
	}

	cat := catalog.New()
	for _, v := range sim.Volumes {
		if err := cat.AddVolume(v); err != nil {
			return err
		}
	}

	filters, err := filter.BuildChain(&cfg.Scheduler)
	if err != nil {
		return err
	}
	weighers, err := weigher.BuildChain(&cfg.Scheduler, weigher.Deps{Counter: cat})
	if err != nil {
		return err
	}

	res, err := resolver.New(cat, cfg.Scheduler.DefaultAvailabilityZone).Resolve(&sim.Request)
	if err != nil {
		return err
	}

	chain := filters
	if len(res.Mandatory) > 0 {
		chain = chain.Append(res.Mandatory...)
	}

	snapshot := repo.Snapshot()
	fmt.Printf("Considering %d backends", len(snapshot))
	if len(res.Context.Zones) > 0 {
		fmt.Printf(" (zones: %v)", res.Context.Zones)
	}
	fmt.Println()

	survivors, diag, err := chain.Run(snapshot, res.Context)
	if err != nil {
		return err
	}
	for filterName, eliminated := range diag.Eliminated {
		for _, backend := range eliminated {
			fmt.Printf("  - %s eliminated by %s\n", backend, filterName)
		}
	}
	if len(survivors) == 0 {
		fmt.Println("No valid host.")
		return nil
	}

	ranked, err := weighers.Rank(survivors, res.Context)
	if err != nil {
		return err
	}
	fmt.Println("Ranking:")
	for i, wh := range ranked {
		fmt.Printf("  %d. %s (weight %.4f)\n", i+1, wh.Host.Key(), wh.Weight)
	}
	fmt.Printf("Winner: %s\n", ranked[0].Host.Key())
	return nil
}
