package hoststate

import (
	"time"

	"github.com/stevedore-io/stevedore/pkg/events"
	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/metrics"
)

// Monitor periodically prunes back ends whose volume service has stopped
// reporting and keeps the repository gauges current.
type Monitor struct {
	repo     *Repository
	broker   *events.Broker
	interval time.Duration
	stopCh   chan struct{}
}

// NewMonitor creates a monitor; broker may be nil.
func NewMonitor(repo *Repository, broker *events.Broker, interval time.Duration) *Monitor {
	return &Monitor{
		repo:     repo,
		broker:   broker,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the prune loop.
func (m *Monitor) Start() {
	go m.run()
}

// Stop stops the prune loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) sweep() {
	removed := m.repo.Prune()
	for _, key := range removed {
		log.WithComponent("hoststate").Warn().
			Str("backend", key).
			Msg("back end aged out, no capability report within liveness window")
		metrics.BackendsPruned.Inc()
		if m.broker != nil {
			m.broker.Publish(&events.Event{
				Type:    events.EventBackendStale,
				Backend: key,
				Message: "no capability report within liveness window",
			})
		}
	}
	metrics.BackendsLive.Set(float64(len(m.repo.Snapshot())))
	metrics.BackendsKnown.Set(float64(m.repo.Len()))
}
