package weigher

import (
	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// VolumeCounter reports placements made since a back end last refreshed
// its reported volume count. The placement catalog implements it.
type VolumeCounter interface {
	VolumesOn(backend string) int
}

// VolumeNumberWeigher spreads load by ranking hosts inversely to the
// number of volumes already placed on them: the reported count plus any
// placements this scheduler dispatched that the back end has not folded
// into a capability report yet.
type VolumeNumberWeigher struct {
	counter VolumeCounter
}

// NewVolumeNumberWeigher creates the weigher; counter may be nil, in which
// case only reported counts rank.
func NewVolumeNumberWeigher(counter VolumeCounter) *VolumeNumberWeigher {
	return &VolumeNumberWeigher{counter: counter}
}

func (w *VolumeNumberWeigher) Name() string { return "volume_number" }

func (w *VolumeNumberWeigher) Weigh(host *types.HostState, _ *filter.Context) (float64, error) {
	count := host.VolumeCount
	if w.counter != nil {
		count += w.counter.VolumesOn(host.Key())
	}
	return -float64(count), nil
}
