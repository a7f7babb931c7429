package hoststate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stevedore-io/stevedore/pkg/types"
)

// Repository is the in-memory table of known back-end pool states, keyed by
// "host#pool". Values are immutable; a capability report builds a fresh
// HostState that replaces the prior one wholesale, so readers never observe
// a partially updated entry. Readers and writers only contend on the map
// itself, for the duration of a single pointer swap.
type Repository struct {
	mu     sync.RWMutex
	states map[string]*types.HostState

	window time.Duration
	now    func() time.Time
}

// NewRepository creates a repository with the given liveness window. A state
// whose report is older than the window is excluded from Snapshot and
// reported as down.
func NewRepository(window time.Duration) *Repository {
	return &Repository{
		states: make(map[string]*types.HostState),
		window: window,
		now:    time.Now,
	}
}

// Apply atomically replaces the state for the report's back end. The report
// must satisfy free <= total when both are measured numbers.
func (r *Repository) Apply(report *types.CapabilityReport) (*types.HostState, error) {
	if report.Host == "" {
		return nil, fmt.Errorf("capability report missing host")
	}
	if report.FreeCapacity.IsKnown() && report.TotalCapacity.IsKnown() &&
		report.FreeCapacity.GB() > report.TotalCapacity.GB() {
		return nil, fmt.Errorf("capability report for %s claims free %s > total %s",
			report.Key(), report.FreeCapacity, report.TotalCapacity)
	}

	updatedAt := report.Timestamp
	if updatedAt.IsZero() {
		updatedAt = r.now()
	}

	state := &types.HostState{
		Host:                     report.Host,
		Pool:                     report.Pool,
		TotalCapacity:            report.TotalCapacity,
		FreeCapacity:             report.FreeCapacity,
		ProvisionedCapacity:      report.ProvisionedCapacity,
		ReservedPercentage:       report.ReservedPercentage,
		MaxOverSubscriptionRatio: report.MaxOverSubscriptionRatio,
		ThinProvisioningSupport:  report.ThinProvisioningSupport,
		ThickProvisioningSupport: report.ThickProvisioningSupport,
		VolumeBackendName:        report.VolumeBackendName,
		StorageProtocol:          report.StorageProtocol,
		VendorName:               report.VendorName,
		DriverVersion:            report.DriverVersion,
		AvailabilityZone:         report.AvailabilityZone,
		VolumeCount:              report.VolumeCount,
		Capabilities:             cloneCapabilities(report.Capabilities),
		UpdatedAt:                updatedAt,
		ServiceState:             types.ServiceStateUp,
	}

	r.mu.Lock()
	if prior, ok := r.states[state.Key()]; ok {
		// An admin disable outlives individual reports.
		state.Disabled = prior.Disabled
	}
	r.states[state.Key()] = state
	r.mu.Unlock()

	return state, nil
}

// Snapshot returns a point-in-time list of all live states: not disabled,
// not stale. Sorted by key so identical repository contents always yield
// the same candidate order.
func (r *Repository) Snapshot() []*types.HostState {
	cutoff := r.now().Add(-r.window)

	r.mu.RLock()
	live := make([]*types.HostState, 0, len(r.states))
	for _, s := range r.states {
		if s.Disabled || s.UpdatedAt.Before(cutoff) {
			continue
		}
		live = append(live, s)
	}
	r.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool { return live[i].Key() < live[j].Key() })
	return live
}

// Get returns the latest state for a back end regardless of staleness, for
// the administrative capability query. Stale entries come back with
// ServiceState down on a copy; the stored value is never touched.
func (r *Repository) Get(host, pool string) (*types.HostState, bool) {
	r.mu.RLock()
	s, ok := r.states[types.BackendKey(host, pool)]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if r.now().Sub(s.UpdatedAt) > r.window {
		down := *s
		down.ServiceState = types.ServiceStateDown
		return &down, true
	}
	return s, true
}

// List returns every known state, stale included, marked like Get.
func (r *Repository) List() []*types.HostState {
	r.mu.RLock()
	keys := make([]string, 0, len(r.states))
	for k := range r.states {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Strings(keys)
	out := make([]*types.HostState, 0, len(keys))
	for _, k := range keys {
		host, pool := splitKey(k)
		if s, ok := r.Get(host, pool); ok {
			out = append(out, s)
		}
	}
	return out
}

// SetDisabled marks every pool of a host disabled or enabled. Returns the
// number of pools affected. Disabling replaces values copy-on-write, same
// as a report.
func (r *Repository) SetDisabled(host string, disabled bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, s := range r.states {
		if s.Host != host {
			continue
		}
		next := *s
		next.Disabled = disabled
		r.states[key] = &next
		n++
	}
	return n
}

// Prune drops states whose owning service has not reported within the
// window. Returns the keys removed.
func (r *Repository) Prune() []string {
	cutoff := r.now().Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for key, s := range r.states {
		if s.UpdatedAt.Before(cutoff) {
			delete(r.states, key)
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	return removed
}

// Len returns the number of known states, stale included.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

func cloneCapabilities(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func splitKey(key string) (host, pool string) {
	for i := 0; i < len(key); i++ {
		if key[i] == types.KeySeparator[0] {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
