package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevedore-io/stevedore/pkg/api"
	"github.com/stevedore-io/stevedore/pkg/catalog"
	"github.com/stevedore-io/stevedore/pkg/config"
	"github.com/stevedore-io/stevedore/pkg/events"
	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/hoststate"
	"github.com/stevedore-io/stevedore/pkg/journal"
	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/resolver"
	"github.com/stevedore-io/stevedore/pkg/scheduler"
	"github.com/stevedore-io/stevedore/pkg/types"
	"github.com/stevedore-io/stevedore/pkg/weigher"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
}

// handoffDispatcher is the in-process worker boundary: the dispatch
// itself travels to workers over the event stream, so the hand-off only
// needs to be visible.
type handoffDispatcher struct{}

func (handoffDispatcher) Dispatch(_ context.Context, p *types.Placement, spec *types.RequestSpec) error {
	log.WithRequestID(p.RequestID).Info().
		Str("backend", p.Backend()).
		Int("attempt", p.Attempt).
		Float64("size_gb", spec.SizeGB).
		Str("volume_type", spec.VolumeType).
		Msg("placement handed to worker boundary")
	return nil
}

func serve(cfg *config.Config) error {
	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	logger := log.WithComponent("serve")

	repo := hoststate.NewRepository(cfg.Scheduler.LivenessWindow)
	cat := catalog.New()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	var jrnl *journal.Journal
	if cfg.Journal.Path != "" {
		var err error
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer jrnl.Close()
	}

	filters, err := filter.BuildChain(&cfg.Scheduler)
	if err != nil {
		return err
	}
	weighers, err := weigher.BuildChain(&cfg.Scheduler, weigher.Deps{Counter: cat})
	if err != nil {
		return err
	}

	opts := scheduler.Options{
		Repository:  repo,
		Resolver:    resolver.New(cat, cfg.Scheduler.DefaultAvailabilityZone),
		Filters:     filters,
		Weighers:    weighers,
		Dispatcher:  handoffDispatcher{},
		Broker:      broker,
		Reserver:    cat,
		MaxRetries:  cfg.Scheduler.MaxRetries,
		AckTimeout:  cfg.Scheduler.AckTimeout,
		Diagnostics: cfg.Scheduler.Diagnostics,
	}
	if jrnl != nil {
		opts.Journal = jrnl
	}
	sched, err := scheduler.New(opts)
	if err != nil {
		return err
	}

	monitor := hoststate.NewMonitor(repo, broker, cfg.Scheduler.LivenessWindow/3)
	monitor.Start()
	defer monitor.Stop()

	srv := api.NewServer(api.Options{
		Addr:       cfg.Server.Addr(),
		Repository: repo,
		Scheduler:  sched,
		Catalog:    cat,
		Journal:    jrnl,
		Broker:     broker,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
