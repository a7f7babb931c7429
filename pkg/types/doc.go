/*
Package types defines the shared data model for the Stevedore scheduler.

The types here flow between every other package: capability reports arriving
from back ends, the immutable HostState snapshots built from them, the
RequestSpec describing a placement request, the transient WeighedHost ranking
entries, and the outbound Placement decision consumed by a volume-creation
worker.

# Data Flow

	CapabilityReport ──▶ HostState ──▶ (filter/weigh) ──▶ WeighedHost
	                                                          │
	RequestSpec ──────────────────────────────────────────────┤
	                                                          ▼
	                                                      Placement ──▶ worker
	                                                          ▲
	                                      Outcome ────────────┘

# Capacity Sentinels

Capacity is not a bare float64 because drivers legitimately report "unknown"
(cannot measure) and "infinite" (unbounded store). The Capacity type keeps
those sentinels distinct from zero through JSON and YAML round trips, and all
capacity math in pkg/filter and pkg/weigher checks IsKnown before comparing
numbers.

# Immutability

A HostState is never mutated after construction. Each capability report
produces a fresh value that atomically replaces the prior one in the
repository, so concurrent scheduling requests can read host state without
locks.

# Errors

The scheduling error taxonomy lives here so that the resolver, filter chain,
scheduler driver, and API layer all agree on error kinds:

  - SpecificationConflictError: contradictory request, client error
  - NoValidHostError: every candidate filtered out
  - ConfigurationError: malformed filter/weigher expression
  - DispatchError: worker rejected a dispatched placement
  - RetriesExhaustedError: bounded retry loop ran out of attempts

All are plain error values matched with errors.As; nothing is panicked
across package boundaries.
*/
package types
