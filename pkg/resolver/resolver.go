package resolver

import (
	"fmt"
	"strings"

	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// Locator resolves references carried by a request into placement facts.
// The catalog implements it; tests supply small fakes.
type Locator interface {
	// VolumeBackend returns the host and availability zone of an existing
	// volume, or ok=false when the volume is unknown.
	VolumeBackend(volumeID string) (host, zone string, ok bool)
	// SnapshotVolume returns the volume a snapshot was taken from.
	SnapshotVolume(snapshotID string) (volumeID string, ok bool)
	// GroupZone returns the availability zone pinned by a consistency
	// group, or ok=false when the group has no zone constraint.
	GroupZone(groupID string) (zone string, ok bool)
}

// Resolved is the output of one resolution pass: the filter context the
// chains evaluate against plus any mandatory filters derived from hints.
// Mandatory filters run before the configured chain.
type Resolved struct {
	Context   *filter.Context
	Mandatory []filter.Filter
}

// Resolver turns a RequestSpec into resolved placement constraints. It
// applies the fixed availability-zone source priority (group, explicit
// parameter, source volume, volume type, configured default) and expands
// affinity hints into hard filters.
type Resolver struct {
	loc         Locator
	defaultZone string
}

// New builds a Resolver. loc may be nil, in which case group and source
// references cannot be resolved and produce conflicts when present.
func New(loc Locator, defaultZone string) *Resolver {
	return &Resolver{loc: loc, defaultZone: defaultZone}
}

// Resolve validates the request, settles the availability-zone constraint
// and expands hints. All failure modes are SpecificationConflict.
func (r *Resolver) Resolve(spec *types.RequestSpec) (*Resolved, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	zones, err := r.resolveZones(spec)
	if err != nil {
		return nil, err
	}

	mandatory, err := r.expandHints(spec, zones)
	if err != nil {
		return nil, err
	}

	res := &Resolved{
		Context:   &filter.Context{Spec: spec, Zones: zones},
		Mandatory: mandatory,
	}
	log.WithRequestID(spec.RequestID).Debug().
		Strs("zones", zones).
		Int("mandatory_filters", len(mandatory)).
		Msg("request resolved")
	return res, nil
}

// zoneSource identifies where a zone constraint came from, for error
// messages and the priority walk.
type zoneSource string

const (
	sourceGroup     zoneSource = "group"
	sourceParameter zoneSource = "parameter"
	sourceVolume    zoneSource = "source volume"
	sourceType      zoneSource = "volume type"
	sourceDefault   zoneSource = "default"
)

// resolveZones walks the sources in fixed priority order and returns the
// acceptable zone set. The first non-empty source wins. A winner that is
// disjoint from a lower-priority explicit constraint (the request
// parameter, or the type restriction list) is a conflict rather than a
// silent override.
func (r *Resolver) resolveZones(spec *types.RequestSpec) ([]string, error) {
	typeZones := splitZones(spec.ExtraSpecs[types.ExtraSpecAvailabilityZones])

	var winner []string
	var from zoneSource

	if z, ok := r.groupZone(spec); ok {
		winner, from = []string{z}, sourceGroup
	} else if spec.AvailabilityZone != "" {
		winner, from = []string{spec.AvailabilityZone}, sourceParameter
	} else if z, ok, err := r.sourceZone(spec); err != nil {
		return nil, err
	} else if ok {
		winner, from = []string{z}, sourceVolume
	} else if len(typeZones) > 0 {
		winner, from = typeZones, sourceType
	} else if r.defaultZone != "" {
		winner, from = []string{r.defaultZone}, sourceDefault
	} else {
		return nil, nil
	}

	// A higher-priority winner must not contradict what the request
	// explicitly asked for.
	if from == sourceGroup && spec.AvailabilityZone != "" && !contains(winner, spec.AvailabilityZone) {
		return nil, &types.SpecificationConflictError{
			Reason: fmt.Sprintf("group zone %q conflicts with requested availability zone %q", winner[0], spec.AvailabilityZone),
		}
	}
	if from != sourceType && len(typeZones) > 0 && disjoint(winner, typeZones) {
		return nil, &types.SpecificationConflictError{
			Reason: fmt.Sprintf("%s zone %s is outside the volume type's allowed zones %s",
				from, strings.Join(winner, ","), strings.Join(typeZones, ",")),
		}
	}
	return winner, nil
}

func (r *Resolver) groupZone(spec *types.RequestSpec) (string, bool) {
	if spec.GroupID == "" || r.loc == nil {
		return "", false
	}
	return r.loc.GroupZone(spec.GroupID)
}

// sourceZone resolves the zone of the snapshot or volume the new volume
// is created from. A dangling reference is a conflict: the caller named
// something that does not exist.
func (r *Resolver) sourceZone(spec *types.RequestSpec) (string, bool, error) {
	volumeID := spec.SourceVolumeID
	if spec.SnapshotID != "" {
		if r.loc == nil {
			return "", false, &types.SpecificationConflictError{
				Reason: fmt.Sprintf("snapshot %q cannot be resolved", spec.SnapshotID),
			}
		}
		id, ok := r.loc.SnapshotVolume(spec.SnapshotID)
		if !ok {
			return "", false, &types.SpecificationConflictError{
				Reason: fmt.Sprintf("snapshot %q references an unknown volume", spec.SnapshotID),
			}
		}
		volumeID = id
	}
	if volumeID == "" {
		return "", false, nil
	}
	if r.loc == nil {
		return "", false, &types.SpecificationConflictError{
			Reason: fmt.Sprintf("source volume %q cannot be resolved", volumeID),
		}
	}
	_, zone, ok := r.loc.VolumeBackend(volumeID)
	if !ok {
		return "", false, &types.SpecificationConflictError{
			Reason: fmt.Sprintf("source volume %q is unknown", volumeID),
		}
	}
	return zone, zone != "", nil
}

// expandHints turns same_host/different_host volume references into hard
// host-set filters. Same-host references must all land on one host, must
// not appear in the different set, and must live inside the resolved
// zone constraint.
func (r *Resolver) expandHints(spec *types.RequestSpec, zones []string) ([]filter.Filter, error) {
	if len(spec.Hints.SameHost) == 0 && len(spec.Hints.DifferentHost) == 0 {
		return nil, nil
	}
	if r.loc == nil {
		return nil, &types.SpecificationConflictError{Reason: "scheduler hints reference volumes but no volume catalog is available"}
	}

	same := make(map[string]struct{})
	for _, id := range spec.Hints.SameHost {
		host, zone, ok := r.loc.VolumeBackend(id)
		if !ok {
			return nil, &types.SpecificationConflictError{
				Reason: fmt.Sprintf("same_host hint references unknown volume %q", id),
			}
		}
		if len(zones) > 0 && zone != "" && !contains(zones, zone) {
			return nil, &types.SpecificationConflictError{
				Reason: fmt.Sprintf("same_host volume %q lives in zone %q, outside requested zones %s", id, zone, strings.Join(zones, ",")),
			}
		}
		same[host] = struct{}{}
	}
	if len(same) > 1 {
		return nil, &types.SpecificationConflictError{
			Reason: fmt.Sprintf("same_host hints resolve to %d different hosts", len(same)),
		}
	}

	diff := make(map[string]struct{})
	for _, id := range spec.Hints.DifferentHost {
		host, _, ok := r.loc.VolumeBackend(id)
		if !ok {
			return nil, &types.SpecificationConflictError{
				Reason: fmt.Sprintf("different_host hint references unknown volume %q", id),
			}
		}
		if _, clash := same[host]; clash {
			return nil, &types.SpecificationConflictError{
				Reason: fmt.Sprintf("different_host volume %q resolves to host %q, which a same_host hint pins", id, host),
			}
		}
		diff[host] = struct{}{}
	}

	var mandatory []filter.Filter
	if len(same) > 0 {
		mandatory = append(mandatory, &filter.SameBackendFilter{Hosts: same})
	}
	if len(diff) > 0 {
		mandatory = append(mandatory, &filter.DifferentBackendFilter{Hosts: diff})
	}
	return mandatory, nil
}

// splitZones parses the comma-separated availability_zones extra-spec.
func splitZones(s string) []string {
	if s == "" {
		return nil
	}
	var zones []string
	for _, z := range strings.Split(s, ",") {
		if z = strings.TrimSpace(z); z != "" {
			zones = append(zones, z)
		}
	}
	return zones
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func disjoint(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return false
		}
	}
	return true
}
