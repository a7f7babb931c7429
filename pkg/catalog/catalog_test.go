package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevedore-io/stevedore/pkg/types"
)

func TestVolumeLookup(t *testing.T) {
	c := New()
	require.NoError(t, c.AddVolume(VolumeRecord{ID: "vol-1", Host: "host-a", Pool: "ssd", Zone: "zoneA", SizeGB: 10}))

	host, zone, ok := c.VolumeBackend("vol-1")
	require.True(t, ok)
	assert.Equal(t, "host-a", host)
	assert.Equal(t, "zoneA", zone)

	_, _, ok = c.VolumeBackend("vol-missing")
	assert.False(t, ok)
}

func TestAddVolumeValidation(t *testing.T) {
	c := New()
	assert.Error(t, c.AddVolume(VolumeRecord{ID: "", Host: "host-a"}))
	assert.Error(t, c.AddVolume(VolumeRecord{ID: "vol-1"}))
}

func TestSnapshotChain(t *testing.T) {
	c := New()
	require.NoError(t, c.AddVolume(VolumeRecord{ID: "vol-1", Host: "host-a"}))
	require.NoError(t, c.AddSnapshot("snap-1", "vol-1"))

	id, ok := c.SnapshotVolume("snap-1")
	require.True(t, ok)
	assert.Equal(t, "vol-1", id)

	assert.Error(t, c.AddSnapshot("snap-2", "vol-missing"))

	// Removing the volume takes its snapshots with it.
	c.RemoveVolume("vol-1")
	_, ok = c.SnapshotVolume("snap-1")
	assert.False(t, ok)
}

func TestGroupZonePin(t *testing.T) {
	c := New()
	c.PinGroup("grp-1", "zoneB")

	zone, ok := c.GroupZone("grp-1")
	require.True(t, ok)
	assert.Equal(t, "zoneB", zone)

	_, ok = c.GroupZone("grp-missing")
	assert.False(t, ok)
}

func TestVolumesOnCountsRecordsAndReservations(t *testing.T) {
	c := New()
	require.NoError(t, c.AddVolume(VolumeRecord{ID: "vol-1", Host: "host-a", Pool: "ssd"}))
	require.NoError(t, c.AddVolume(VolumeRecord{ID: "vol-2", Host: "host-a", Pool: "ssd"}))
	require.NoError(t, c.AddVolume(VolumeRecord{ID: "vol-3", Host: "host-b"}))

	backend := types.BackendKey("host-a", "ssd")
	assert.Equal(t, 2, c.VolumesOn(backend))

	c.Reserve(&types.Placement{RequestID: "req-1", Host: "host-a", Pool: "ssd", Attempt: 1})
	assert.Equal(t, 3, c.VolumesOn(backend))

	// A retry moves the reservation rather than double counting.
	c.Reserve(&types.Placement{RequestID: "req-1", Host: "host-b", Attempt: 2})
	assert.Equal(t, 2, c.VolumesOn(backend))
	assert.Equal(t, 2, c.VolumesOn(types.BackendKey("host-b", "")))

	c.Release("req-1")
	assert.Equal(t, 1, c.VolumesOn(types.BackendKey("host-b", "")))
}

func TestCommitTurnsReservationIntoRecord(t *testing.T) {
	c := New()
	c.Reserve(&types.Placement{RequestID: "req-1", Host: "host-a", Attempt: 1})

	require.NoError(t, c.Commit("req-1", VolumeRecord{ID: "vol-9", Host: "host-a", Zone: "zoneA", SizeGB: 5}))

	backend := types.BackendKey("host-a", "")
	assert.Equal(t, 1, c.VolumesOn(backend))

	host, zone, ok := c.VolumeBackend("vol-9")
	require.True(t, ok)
	assert.Equal(t, "host-a", host)
	assert.Equal(t, "zoneA", zone)
}

func TestCommitWithoutVolumeIDJustReleases(t *testing.T) {
	c := New()
	c.Reserve(&types.Placement{RequestID: "req-1", Host: "host-a", Attempt: 1})

	require.NoError(t, c.Commit("req-1", VolumeRecord{}))
	assert.Equal(t, 0, c.VolumesOn(types.BackendKey("host-a", "")))
	assert.Empty(t, c.Volumes())
}

func TestVolumesSortedCopy(t *testing.T) {
	c := New()
	require.NoError(t, c.AddVolume(VolumeRecord{ID: "vol-b", Host: "h"}))
	require.NoError(t, c.AddVolume(VolumeRecord{ID: "vol-a", Host: "h"}))

	vols := c.Volumes()
	require.Len(t, vols, 2)
	assert.Equal(t, "vol-a", vols[0].ID)

	vols[0].Host = "mutated"
	h, _, _ := c.VolumeBackend("vol-a")
	assert.Equal(t, "h", h)
}
