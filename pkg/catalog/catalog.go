package catalog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// VolumeRecord is the catalog's view of a placed volume: where it landed
// and the facts the resolver needs to answer hint lookups.
type VolumeRecord struct {
	ID      string    `json:"id"`
	Host    string    `json:"host"`
	Pool    string    `json:"pool,omitempty"`
	Zone    string    `json:"zone,omitempty"`
	SizeGB  float64   `json:"size"`
	GroupID string    `json:"group_id,omitempty"`
	Created time.Time `json:"created"`
}

// Backend returns the composite key of the back end holding the volume.
func (v *VolumeRecord) Backend() string {
	return types.BackendKey(v.Host, v.Pool)
}

// Catalog tracks volumes, snapshots and group zone pins, plus in-flight
// reservations for placements that were dispatched but not yet
// acknowledged. It serves the resolver's reference lookups and gives the
// volume-number weigher visibility into placements the back ends have
// not reported yet.
type Catalog struct {
	mu        sync.RWMutex
	volumes   map[string]*VolumeRecord
	snapshots map[string]string // snapshot id -> volume id
	groups    map[string]string // group id -> pinned zone
	reserved  map[string]string // request id -> backend key
}

func New() *Catalog {
	return &Catalog{
		volumes:   make(map[string]*VolumeRecord),
		snapshots: make(map[string]string),
		groups:    make(map[string]string),
		reserved:  make(map[string]string),
	}
}

// AddVolume inserts or replaces a volume record.
func (c *Catalog) AddVolume(rec VolumeRecord) error {
	if rec.ID == "" || rec.Host == "" {
		return fmt.Errorf("volume record needs an id and a host")
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now().UTC()
	}
	c.mu.Lock()
	c.volumes[rec.ID] = &rec
	c.mu.Unlock()
	return nil
}

// RemoveVolume drops a volume and any snapshots taken from it.
func (c *Catalog) RemoveVolume(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.volumes, id)
	for snap, vol := range c.snapshots {
		if vol == id {
			delete(c.snapshots, snap)
		}
	}
}

// AddSnapshot records that a snapshot was taken from an existing volume.
func (c *Catalog) AddSnapshot(snapshotID, volumeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.volumes[volumeID]; !ok {
		return fmt.Errorf("snapshot %s references unknown volume %s", snapshotID, volumeID)
	}
	c.snapshots[snapshotID] = volumeID
	return nil
}

// PinGroup constrains a consistency group to one availability zone.
func (c *Catalog) PinGroup(groupID, zone string) {
	c.mu.Lock()
	c.groups[groupID] = zone
	c.mu.Unlock()
}

// VolumeBackend implements resolver.Locator.
func (c *Catalog) VolumeBackend(volumeID string) (host, zone string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.volumes[volumeID]
	if !ok {
		return "", "", false
	}
	return rec.Host, rec.Zone, true
}

// SnapshotVolume implements resolver.Locator.
func (c *Catalog) SnapshotVolume(snapshotID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.snapshots[snapshotID]
	return id, ok
}

// GroupZone implements resolver.Locator.
func (c *Catalog) GroupZone(groupID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	zone, ok := c.groups[groupID]
	return zone, ok && zone != ""
}

// Reserve notes a dispatched placement so concurrent requests see the
// backend as one volume busier before the back end reports again.
// Re-reserving the same request moves the reservation, which is what a
// retry against the next-ranked host needs.
func (c *Catalog) Reserve(p *types.Placement) {
	c.mu.Lock()
	c.reserved[p.RequestID] = p.Backend()
	c.mu.Unlock()
}

// Commit converts a reservation into a volume record after the worker
// reported success. The zone is taken from the caller since the catalog
// does not track host state.
func (c *Catalog) Commit(requestID string, rec VolumeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reserved, requestID)
	if rec.ID == "" {
		// Placement without a durable volume identity, nothing to keep.
		return nil
	}
	if rec.Host == "" {
		return fmt.Errorf("commit for %s needs a host", requestID)
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now().UTC()
	}
	c.volumes[rec.ID] = &rec
	log.WithRequestID(requestID).Debug().Str("volume", rec.ID).Str("backend", rec.Backend()).Msg("volume committed")
	return nil
}

// Release drops a reservation after a failed or abandoned placement.
func (c *Catalog) Release(requestID string) {
	c.mu.Lock()
	delete(c.reserved, requestID)
	c.mu.Unlock()
}

// VolumesOn implements weigher.VolumeCounter: volumes the catalog knows
// about on the backend plus in-flight reservations.
func (c *Catalog) VolumesOn(backend string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, rec := range c.volumes {
		if rec.Backend() == backend {
			n++
		}
	}
	for _, b := range c.reserved {
		if b == backend {
			n++
		}
	}
	return n
}

// Volumes returns all records sorted by id, for the admin API.
func (c *Catalog) Volumes() []*VolumeRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*VolumeRecord, 0, len(c.volumes))
	for _, rec := range c.volumes {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
