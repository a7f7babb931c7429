package filter

import (
	"strconv"
	"strings"

	"github.com/stevedore-io/stevedore/pkg/types"
)

// CapabilitiesScope prefixes extra-spec keys that constrain declared host
// capabilities. Unscoped keys are driver hints and ignored here.
const CapabilitiesScope = "capabilities:"

// CapabilitiesFilter matches "capabilities:"-scoped volume-type extra specs
// against the host's declared capability map. A scoped key the host does
// not declare fails the host.
//
// Requirement syntax, mirroring the usual extra-spec matchers:
//
//	"value"            exact string match
//	"<is> true"        boolean match
//	"<in> substr"      substring match
//	"<or> a <or> b"    any-of match
//	"== 5", "!= 5",
//	">= 5", "<= 5",
//	"> 5",  "< 5"      numeric comparison
type CapabilitiesFilter struct{}

func (f *CapabilitiesFilter) Name() string { return "capabilities" }

func (f *CapabilitiesFilter) Matches(host *types.HostState, ctx *Context) (bool, error) {
	for key, want := range ctx.Spec.ExtraSpecs {
		if !strings.HasPrefix(key, CapabilitiesScope) {
			continue
		}
		capKey := strings.TrimPrefix(key, CapabilitiesScope)
		declared, ok := lookupCapability(host, capKey)
		if !ok {
			return false, nil
		}
		if !requirementMatches(want, declared) {
			return false, nil
		}
	}
	return true, nil
}

// lookupCapability resolves a capability key against the arbitrary map
// first and falls back to the well-known declared fields.
func lookupCapability(host *types.HostState, key string) (string, bool) {
	if v, ok := host.Capabilities[key]; ok {
		return v, true
	}
	switch key {
	case "volume_backend_name":
		return host.VolumeBackendName, host.VolumeBackendName != ""
	case "storage_protocol":
		return host.StorageProtocol, host.StorageProtocol != ""
	case "vendor_name":
		return host.VendorName, host.VendorName != ""
	case "driver_version":
		return host.DriverVersion, host.DriverVersion != ""
	case "thin_provisioning_support":
		return strconv.FormatBool(host.ThinProvisioningSupport), true
	case "thick_provisioning_support":
		return strconv.FormatBool(host.ThickProvisioningSupport), true
	}
	return "", false
}

func requirementMatches(want, declared string) bool {
	want = strings.TrimSpace(want)

	switch {
	case strings.HasPrefix(want, "<is>"):
		wantBool, err1 := strconv.ParseBool(strings.TrimSpace(strings.TrimPrefix(want, "<is>")))
		haveBool, err2 := strconv.ParseBool(declared)
		return err1 == nil && err2 == nil && wantBool == haveBool

	case strings.HasPrefix(want, "<in>"):
		return strings.Contains(declared, strings.TrimSpace(strings.TrimPrefix(want, "<in>")))

	case strings.HasPrefix(want, "<or>"):
		for _, alt := range strings.Split(want, "<or>") {
			if alt = strings.TrimSpace(alt); alt != "" && alt == declared {
				return true
			}
		}
		return false
	}

	for _, op := range []string{"==", "!=", ">=", "<=", ">", "<"} {
		if !strings.HasPrefix(want, op) {
			continue
		}
		wantNum, err1 := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(want, op)), 64)
		haveNum, err2 := strconv.ParseFloat(declared, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		switch op {
		case "==":
			return haveNum == wantNum
		case "!=":
			return haveNum != wantNum
		case ">=":
			return haveNum >= wantNum
		case "<=":
			return haveNum <= wantNum
		case ">":
			return haveNum > wantNum
		case "<":
			return haveNum < wantNum
		}
	}

	return want == declared
}
