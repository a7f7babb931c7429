package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/types"
)

type fakeLocator struct {
	volumes   map[string][2]string // id -> host, zone
	snapshots map[string]string    // id -> volume id
	groups    map[string]string    // id -> zone
}

func (f *fakeLocator) VolumeBackend(id string) (string, string, bool) {
	v, ok := f.volumes[id]
	return v[0], v[1], ok
}

func (f *fakeLocator) SnapshotVolume(id string) (string, bool) {
	v, ok := f.snapshots[id]
	return v, ok
}

func (f *fakeLocator) GroupZone(id string) (string, bool) {
	z, ok := f.groups[id]
	return z, ok
}

func testLocator() *fakeLocator {
	return &fakeLocator{
		volumes: map[string][2]string{
			"vol-a": {"host-a", "zoneA"},
			"vol-b": {"host-b", "zoneB"},
			"vol-c": {"host-a", "zoneA"},
		},
		snapshots: map[string]string{"snap-b": "vol-b"},
		groups:    map[string]string{"grp-b": "zoneB"},
	}
}

func spec(mut func(*types.RequestSpec)) *types.RequestSpec {
	s := &types.RequestSpec{RequestID: "req-1", SizeGB: 10}
	if mut != nil {
		mut(s)
	}
	return s
}

func TestZonePriorityOrder(t *testing.T) {
	r := New(testLocator(), "zoneDefault")

	tests := []struct {
		name string
		mut  func(*types.RequestSpec)
		want []string
	}{
		{"group wins over everything", func(s *types.RequestSpec) {
			s.GroupID = "grp-b"
			s.SourceVolumeID = "vol-a"
		}, []string{"zoneB"}},
		{"parameter wins over source", func(s *types.RequestSpec) {
			s.AvailabilityZone = "zoneA"
			s.SourceVolumeID = "vol-b"
		}, []string{"zoneA"}},
		{"snapshot resolves through its volume", func(s *types.RequestSpec) {
			s.SnapshotID = "snap-b"
		}, []string{"zoneB"}},
		{"source volume zone", func(s *types.RequestSpec) {
			s.SourceVolumeID = "vol-a"
		}, []string{"zoneA"}},
		{"type restriction list", func(s *types.RequestSpec) {
			s.ExtraSpecs = map[string]string{types.ExtraSpecAvailabilityZones: "zoneA, zoneC"}
		}, []string{"zoneA", "zoneC"}},
		{"configured default", nil, []string{"zoneDefault"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(spec(tt.mut))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Context.Zones)
		})
	}
}

func TestGroupZoneConflictsWithParameter(t *testing.T) {
	r := New(testLocator(), "")

	_, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.AvailabilityZone = "zoneA"
		s.GroupID = "grp-b"
	}))

	var conflict *types.SpecificationConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Contains(t, conflict.Reason, "zoneB")
	assert.Contains(t, conflict.Reason, "zoneA")
}

func TestWinnerDisjointFromTypeRestriction(t *testing.T) {
	r := New(testLocator(), "")

	_, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.AvailabilityZone = "zoneB"
		s.ExtraSpecs = map[string]string{types.ExtraSpecAvailabilityZones: "zoneA,zoneC"}
	}))

	var conflict *types.SpecificationConflictError
	require.True(t, errors.As(err, &conflict))
}

func TestWinnerInsideTypeRestrictionPasses(t *testing.T) {
	r := New(testLocator(), "")

	res, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.AvailabilityZone = "zoneA"
		s.ExtraSpecs = map[string]string{types.ExtraSpecAvailabilityZones: "zoneA,zoneC"}
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"zoneA"}, res.Context.Zones)
}

func TestNoZoneSourcesMeansUnconstrained(t *testing.T) {
	r := New(testLocator(), "")

	res, err := r.Resolve(spec(nil))
	require.NoError(t, err)
	assert.Empty(t, res.Context.Zones)
	assert.Empty(t, res.Mandatory)
}

func TestSameHostHintsBecomeMandatoryFilter(t *testing.T) {
	r := New(testLocator(), "")

	res, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.Hints.SameHost = []string{"vol-a", "vol-c"}
	}))
	require.NoError(t, err)
	require.Len(t, res.Mandatory, 1)

	same, ok := res.Mandatory[0].(*filter.SameBackendFilter)
	require.True(t, ok)
	assert.Contains(t, same.Hosts, "host-a")
	assert.Len(t, same.Hosts, 1)
}

func TestSameHostHintsOnDifferentHostsConflict(t *testing.T) {
	r := New(testLocator(), "")

	_, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.Hints.SameHost = []string{"vol-a", "vol-b"}
	}))

	var conflict *types.SpecificationConflictError
	require.True(t, errors.As(err, &conflict))
}

func TestSameHostHintOutsideRequestedZoneConflicts(t *testing.T) {
	r := New(testLocator(), "")

	_, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.AvailabilityZone = "zoneB"
		s.Hints.SameHost = []string{"vol-a"} // lives in zoneA
	}))

	var conflict *types.SpecificationConflictError
	require.True(t, errors.As(err, &conflict))
}

func TestDifferentHostHintsBecomeExclusionFilter(t *testing.T) {
	r := New(testLocator(), "")

	res, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.Hints.DifferentHost = []string{"vol-b"}
	}))
	require.NoError(t, err)
	require.Len(t, res.Mandatory, 1)

	diff, ok := res.Mandatory[0].(*filter.DifferentBackendFilter)
	require.True(t, ok)
	assert.Contains(t, diff.Hosts, "host-b")
}

func TestSameAndDifferentOnOneHostConflict(t *testing.T) {
	r := New(testLocator(), "")

	_, err := r.Resolve(spec(func(s *types.RequestSpec) {
		s.Hints.SameHost = []string{"vol-a"}
		s.Hints.DifferentHost = []string{"vol-c"} // also host-a
	}))

	var conflict *types.SpecificationConflictError
	require.True(t, errors.As(err, &conflict))
}

func TestUnknownReferencesConflict(t *testing.T) {
	r := New(testLocator(), "")

	for _, mut := range []func(*types.RequestSpec){
		func(s *types.RequestSpec) { s.SourceVolumeID = "vol-missing" },
		func(s *types.RequestSpec) { s.SnapshotID = "snap-missing" },
		func(s *types.RequestSpec) { s.Hints.SameHost = []string{"vol-missing"} },
		func(s *types.RequestSpec) { s.Hints.DifferentHost = []string{"vol-missing"} },
	} {
		_, err := r.Resolve(spec(mut))
		var conflict *types.SpecificationConflictError
		assert.True(t, errors.As(err, &conflict))
	}
}

func TestNilLocatorRejectsReferences(t *testing.T) {
	r := New(nil, "zoneDefault")

	res, err := r.Resolve(spec(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"zoneDefault"}, res.Context.Zones)

	_, err = r.Resolve(spec(func(s *types.RequestSpec) {
		s.Hints.SameHost = []string{"vol-a"}
	}))
	var conflict *types.SpecificationConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestInvalidSizeRejected(t *testing.T) {
	r := New(testLocator(), "")

	_, err := r.Resolve(&types.RequestSpec{RequestID: "req-0", SizeGB: 0})
	var conflict *types.SpecificationConflictError
	assert.True(t, errors.As(err, &conflict))
}
