package filter

import (
	"github.com/stevedore-io/stevedore/pkg/types"
)

// AvailabilityZoneFilter passes hosts whose declared zone is in the
// resolved acceptable set. An unconstrained request passes every host; a
// constrained request fails hosts that declare no zone at all.
type AvailabilityZoneFilter struct{}

func (f *AvailabilityZoneFilter) Name() string { return "availability_zone" }

func (f *AvailabilityZoneFilter) Matches(host *types.HostState, ctx *Context) (bool, error) {
	if len(ctx.Zones) == 0 {
		return true, nil
	}
	if host.AvailabilityZone == "" {
		return false, nil
	}
	return ctx.ZoneAllowed(host.AvailabilityZone), nil
}
