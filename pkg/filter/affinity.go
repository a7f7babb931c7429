package filter

import (
	"github.com/stevedore-io/stevedore/pkg/types"
)

// SameBackendFilter restricts placement to a fixed host set. The resolver
// builds one from same_host hints after looking up where the referenced
// volumes live.
type SameBackendFilter struct {
	Hosts map[string]struct{}
}

func (f *SameBackendFilter) Name() string { return "same_backend" }

func (f *SameBackendFilter) Matches(host *types.HostState, _ *Context) (bool, error) {
	_, ok := f.Hosts[host.Host]
	return ok, nil
}

// DifferentBackendFilter excludes a fixed host set, built from
// different_host hints. The scheduler also uses it to exclude hosts that
// already failed a dispatch for the current request.
type DifferentBackendFilter struct {
	Hosts map[string]struct{}
}

func (f *DifferentBackendFilter) Name() string { return "different_backend" }

func (f *DifferentBackendFilter) Matches(host *types.HostState, _ *Context) (bool, error) {
	_, excluded := f.Hosts[host.Host]
	return !excluded, nil
}
