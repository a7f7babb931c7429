package evaluator

import (
	"strconv"

	"github.com/stevedore-io/stevedore/pkg/types"
)

// Properties assembles the read-only property bag an expression evaluates
// against: "volume.*" keys from the request, "backend.*" keys from the host
// state, and "capability.*" keys from the arbitrary capability map.
//
// Capacity sentinels are omitted rather than mapped to a number, so an
// expression touching an unmeasured capacity fails loudly instead of
// comparing against a made-up value. Infinite capacities are also omitted;
// back ends reporting them should not be ranked by capacity expressions.
func Properties(host *types.HostState, spec *types.RequestSpec) map[string]interface{} {
	props := map[string]interface{}{
		"backend.host":                        host.Host,
		"backend.pool":                        host.Pool,
		"backend.provisioned_capacity":        host.ProvisionedCapacity,
		"backend.reserved_percentage":         float64(host.ReservedPercentage),
		"backend.max_over_subscription_ratio": host.MaxOverSubscriptionRatio,
		"backend.thin_provisioning_support":   host.ThinProvisioningSupport,
		"backend.thick_provisioning_support":  host.ThickProvisioningSupport,
		"backend.volume_backend_name":         host.VolumeBackendName,
		"backend.storage_protocol":            host.StorageProtocol,
		"backend.vendor_name":                 host.VendorName,
		"backend.driver_version":              host.DriverVersion,
		"backend.availability_zone":           host.AvailabilityZone,
		"backend.volume_count":                float64(host.VolumeCount),
	}
	if host.TotalCapacity.IsKnown() {
		props["backend.total_capacity"] = host.TotalCapacity.GB()
	}
	if host.FreeCapacity.IsKnown() {
		props["backend.free_capacity"] = host.FreeCapacity.GB()
	}

	for k, v := range host.Capabilities {
		props["capability."+k] = coerce(v)
	}

	if spec != nil {
		props["volume.size"] = spec.SizeGB
		props["volume.type"] = spec.VolumeType
		props["volume.availability_zone"] = spec.AvailabilityZone
		for k, v := range spec.ExtraSpecs {
			props["volume.extra."+k] = coerce(v)
		}
	}
	return props
}

// coerce turns capability strings into numbers or booleans when they parse
// as such, since drivers report everything as strings.
func coerce(s string) interface{} {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
