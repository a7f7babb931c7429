package types

import (
	"fmt"
	"time"
)

// ServiceState represents the liveness of the volume service owning a back end
type ServiceState string

const (
	ServiceStateUp   ServiceState = "up"
	ServiceStateDown ServiceState = "down"
)

// KeySeparator joins a host and pool into a composite back-end key
const KeySeparator = "#"

// BackendKey builds the composite "host#pool" key. A back end that does not
// report pools is keyed by its host name alone.
func BackendKey(host, pool string) string {
	if pool == "" {
		return host
	}
	return host + KeySeparator + pool
}

// HostState is an immutable snapshot of one back end pool's reported
// capabilities and derived capacity metrics. A new value replaces the prior
// one wholesale on every capability report; nothing mutates a HostState after
// it enters the repository.
type HostState struct {
	Host string `json:"host"`
	Pool string `json:"pool,omitempty"`

	// Capacity
	TotalCapacity            Capacity `json:"total_capacity"`
	FreeCapacity             Capacity `json:"free_capacity"`
	ProvisionedCapacity      float64  `json:"provisioned_capacity"`
	ReservedPercentage       int      `json:"reserved_percentage"`
	MaxOverSubscriptionRatio float64  `json:"max_over_subscription_ratio"`
	ThinProvisioningSupport  bool     `json:"thin_provisioning_support"`
	ThickProvisioningSupport bool     `json:"thick_provisioning_support"`

	// Declared capabilities
	VolumeBackendName string            `json:"volume_backend_name"`
	StorageProtocol   string            `json:"storage_protocol"`
	VendorName        string            `json:"vendor_name"`
	DriverVersion     string            `json:"driver_version"`
	AvailabilityZone  string            `json:"availability_zone,omitempty"`
	VolumeCount       int               `json:"volume_count"`
	Capabilities      map[string]string `json:"capabilities,omitempty"`

	// Liveness
	UpdatedAt    time.Time    `json:"updated_at"`
	ServiceState ServiceState `json:"service_state"`
	Disabled     bool         `json:"disabled"`
}

// Key returns the composite repository key for this state.
func (h *HostState) Key() string {
	return BackendKey(h.Host, h.Pool)
}

// ReservedGB is the slice of total capacity held back from placement,
// computed from the reserved percentage. Zero when total is a sentinel.
func (h *HostState) ReservedGB() float64 {
	if !h.TotalCapacity.IsKnown() {
		return 0
	}
	return h.TotalCapacity.GB() * float64(h.ReservedPercentage) / 100.0
}

// UsableFree is the thick-provisioning free capacity: reported free space
// minus the reserved slice of total capacity. Sentinels pass through.
func (h *HostState) UsableFree() Capacity {
	if !h.FreeCapacity.IsKnown() {
		return h.FreeCapacity
	}
	return NewCapacity(h.FreeCapacity.GB() - h.ReservedGB())
}

// Oversubscribed reports whether the pool is eligible for thin-provisioning
// capacity math. A ratio configured at or below 1.0 means the back end is not
// oversubscribing and falls back to the thick rule.
func (h *HostState) Oversubscribed() bool {
	return h.ThinProvisioningSupport && h.MaxOverSubscriptionRatio > 1.0
}

// VirtualFree is the thin-provisioning free capacity:
// total * max_over_subscription_ratio - provisioned. Sentinels pass through.
func (h *HostState) VirtualFree() Capacity {
	if !h.TotalCapacity.IsKnown() {
		return h.TotalCapacity
	}
	return NewCapacity(h.TotalCapacity.GB()*h.MaxOverSubscriptionRatio - h.ProvisionedCapacity)
}

func (h *HostState) String() string {
	return fmt.Sprintf("HostState(%s, free=%s/%s)", h.Key(), h.FreeCapacity, h.TotalCapacity)
}

// CapabilityReport is the periodic snapshot a back end pushes about one pool.
// Reports are atomic: every field of the resulting HostState comes from the
// same report, never from a merge of two reports.
type CapabilityReport struct {
	Host      string    `json:"host" yaml:"host"`
	Pool      string    `json:"pool,omitempty" yaml:"pool,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	TotalCapacity            Capacity `json:"total_capacity" yaml:"total_capacity"`
	FreeCapacity             Capacity `json:"free_capacity" yaml:"free_capacity"`
	ProvisionedCapacity      float64  `json:"provisioned_capacity" yaml:"provisioned_capacity"`
	ReservedPercentage       int      `json:"reserved_percentage" yaml:"reserved_percentage"`
	MaxOverSubscriptionRatio float64  `json:"max_over_subscription_ratio" yaml:"max_over_subscription_ratio"`
	ThinProvisioningSupport  bool     `json:"thin_provisioning_support" yaml:"thin_provisioning_support"`
	ThickProvisioningSupport bool     `json:"thick_provisioning_support" yaml:"thick_provisioning_support"`

	VolumeBackendName string            `json:"volume_backend_name" yaml:"volume_backend_name"`
	StorageProtocol   string            `json:"storage_protocol" yaml:"storage_protocol"`
	VendorName        string            `json:"vendor_name" yaml:"vendor_name"`
	DriverVersion     string            `json:"driver_version" yaml:"driver_version"`
	AvailabilityZone  string            `json:"availability_zone,omitempty" yaml:"availability_zone,omitempty"`
	VolumeCount       int               `json:"volume_count" yaml:"volume_count"`
	Capabilities      map[string]string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// Key returns the composite repository key for this report.
func (r *CapabilityReport) Key() string {
	return BackendKey(r.Host, r.Pool)
}

// ExtraSpecAvailabilityZones is the volume-type extra-spec key holding a
// comma-separated list of zones the type is restricted to.
const ExtraSpecAvailabilityZones = "availability_zones"

// SchedulerHints carry request-time affinity instructions.
type SchedulerHints struct {
	// SameHost lists volume IDs the new volume must be co-located with.
	SameHost []string `json:"same_host,omitempty" yaml:"same_host,omitempty"`
	// DifferentHost lists volume IDs the new volume must be separated from.
	DifferentHost []string `json:"different_host,omitempty" yaml:"different_host,omitempty"`
}

// RequestSpec describes the resource being placed.
type RequestSpec struct {
	RequestID string `json:"request_id" yaml:"request_id"`
	// SizeGB must be positive.
	SizeGB float64 `json:"size" yaml:"size"`

	VolumeType string            `json:"volume_type,omitempty" yaml:"volume_type,omitempty"`
	ExtraSpecs map[string]string `json:"extra_specs,omitempty" yaml:"extra_specs,omitempty"`

	// Source references, at most one set.
	SourceVolumeID string `json:"source_volume_id,omitempty" yaml:"source_volume_id,omitempty"`
	SnapshotID     string `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ImageID        string `json:"image_id,omitempty" yaml:"image_id,omitempty"`

	AvailabilityZone string `json:"availability_zone,omitempty" yaml:"availability_zone,omitempty"`
	GroupID          string `json:"group_id,omitempty" yaml:"group_id,omitempty"`

	Hints SchedulerHints `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Validate checks the request-level invariants that do not need host state.
func (s *RequestSpec) Validate() error {
	if s.SizeGB <= 0 {
		return &SpecificationConflictError{Reason: fmt.Sprintf("size must be positive, got %v", s.SizeGB)}
	}
	return nil
}

// WeighedHost pairs a candidate host with its combined score for one
// scheduling attempt. Never persisted.
type WeighedHost struct {
	Host   *HostState `json:"host"`
	Weight float64    `json:"weight"`
}

// Placement is the outbound decision handed to a volume-creation worker.
type Placement struct {
	RequestID string `json:"request_id"`
	Host      string `json:"host"`
	Pool      string `json:"pool,omitempty"`
	// Attempt counts dispatches for this request, starting at 1.
	Attempt int `json:"attempt"`
}

// Backend returns the composite key of the chosen back end.
func (p *Placement) Backend() string {
	return BackendKey(p.Host, p.Pool)
}

// OutcomeStatus classifies a worker's report about a dispatched placement.
type OutcomeStatus string

const (
	OutcomeSuccess          OutcomeStatus = "success"
	OutcomeRetryableFailure OutcomeStatus = "retryable_failure"
	OutcomeFatalFailure     OutcomeStatus = "fatal_failure"
)

// Outcome is the worker's verdict on a dispatched placement.
type Outcome struct {
	RequestID string        `json:"request_id"`
	Host      string        `json:"dispatched_host"`
	Status    OutcomeStatus `json:"outcome"`
	Detail    string        `json:"error_detail,omitempty"`
}
