package filter

import (
	"github.com/stevedore-io/stevedore/pkg/types"
)

// CapacityFilter passes hosts with enough free capacity for the requested
// size. The rule depends on the host's provisioning mode:
//
//   - thick: reported free minus the reserved slice of *total* capacity
//     must cover the request
//   - thin with an oversubscription ratio above 1.0: the virtual free
//     capacity (total * ratio - provisioned) must cover the request
//
// A ratio at or below 1.0 means the host is not oversubscribing and the
// thick rule applies. Sentinel capacities pass: "infinite" trivially fits
// and "unknown" cannot be disproven, so the back end itself gets the final
// say at creation time.
type CapacityFilter struct{}

func (f *CapacityFilter) Name() string { return "capacity" }

func (f *CapacityFilter) Matches(host *types.HostState, ctx *Context) (bool, error) {
	size := ctx.Spec.SizeGB

	if host.Oversubscribed() {
		virtual := host.VirtualFree()
		if !virtual.IsKnown() {
			return true, nil
		}
		return virtual.GB() >= size, nil
	}

	free := host.UsableFree()
	if !free.IsKnown() {
		return true, nil
	}
	return free.GB() >= size, nil
}
