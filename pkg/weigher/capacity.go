package weigher

import (
	"math"

	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// CapacityWeigher ranks by free capacity: usable free for thick hosts,
// virtual free for oversubscribed thin hosts, matching the capacity
// filter's arithmetic. More free scores higher by default; configure a
// negative multiplier to prefer the fullest hosts instead (consolidation).
type CapacityWeigher struct{}

func (w *CapacityWeigher) Name() string { return "capacity" }

func (w *CapacityWeigher) Weigh(host *types.HostState, _ *filter.Context) (float64, error) {
	var free types.Capacity
	if host.Oversubscribed() {
		free = host.VirtualFree()
	} else {
		free = host.UsableFree()
	}

	switch {
	case free.IsInfinite():
		return math.Inf(1), nil
	case free.IsUnknown():
		// Unmeasured capacity ranks below every measured host.
		return 0, nil
	default:
		return free.GB(), nil
	}
}
