package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/metrics"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// Context carries one scheduling request through the chain: the request
// spec plus the acceptable-zone set produced by the resolver. Filters read
// it, never write it.
type Context struct {
	Spec *types.RequestSpec
	// Zones is the resolved acceptable availability-zone set; empty means
	// the request is not zone constrained.
	Zones []string
}

// ZoneAllowed reports whether a zone is in the acceptable set.
func (c *Context) ZoneAllowed(zone string) bool {
	for _, z := range c.Zones {
		if z == zone {
			return true
		}
	}
	return false
}

// Filter is a hard placement constraint. Matches must be a pure function of
// its arguments: no side effects on the host state, no request-scoped
// memory between calls.
type Filter interface {
	Name() string
	Matches(host *types.HostState, ctx *Context) (bool, error)
}

// Diagnostics records which filter eliminated which hosts during one run,
// for NoValidHost detail.
type Diagnostics struct {
	// Eliminated maps filter name to the back-end keys it rejected.
	Eliminated map[string][]string
	// Started is the candidate count entering the chain.
	Started int
}

// Summary renders a one-line elimination breakdown.
func (d *Diagnostics) Summary() string {
	if len(d.Eliminated) == 0 {
		return fmt.Sprintf("no candidates among %d hosts were eliminated", d.Started)
	}
	names := make([]string, 0, len(d.Eliminated))
	for name := range d.Eliminated {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s removed %s", name, strings.Join(d.Eliminated[name], ",")))
	}
	return fmt.Sprintf("started with %d hosts: %s", d.Started, strings.Join(parts, "; "))
}

// Chain applies filters in order. Filtering is conjunctive: a host must
// pass every filter, so order only matters for performance and
// diagnostics attribution.
type Chain struct {
	filters []Filter
}

// NewChain builds a chain from the given filters.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Append returns a new chain with extra filters in front of the existing
// ones. The resolver uses this to prepend its mandatory affinity filters;
// they are cheap and eliminate aggressively, so they run first.
func (c *Chain) Append(front ...Filter) *Chain {
	combined := make([]Filter, 0, len(front)+len(c.filters))
	combined = append(combined, front...)
	combined = append(combined, c.filters...)
	return &Chain{filters: combined}
}

// Run reduces the candidate list. A filter error (malformed expression)
// aborts the run and surfaces to the caller.
func (c *Chain) Run(hosts []*types.HostState, ctx *Context) ([]*types.HostState, *Diagnostics, error) {
	diag := &Diagnostics{Eliminated: make(map[string][]string), Started: len(hosts)}
	logger := log.WithComponent("filter")

	remaining := hosts
	for _, f := range c.filters {
		if len(remaining) == 0 {
			break
		}
		var survivors []*types.HostState
		for _, h := range remaining {
			ok, err := f.Matches(h, ctx)
			if err != nil {
				return nil, diag, err
			}
			if ok {
				survivors = append(survivors, h)
				continue
			}
			diag.Eliminated[f.Name()] = append(diag.Eliminated[f.Name()], h.Key())
			metrics.FilterEliminations.WithLabelValues(f.Name()).Inc()
			logger.Debug().
				Str("filter", f.Name()).
				Str("backend", h.Key()).
				Str("request_id", ctx.Spec.RequestID).
				Msg("host eliminated")
		}
		remaining = survivors
	}
	return remaining, diag, nil
}
