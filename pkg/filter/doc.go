/*
Package filter implements the hard-constraint stage of the scheduling
pipeline.

A Filter is a pure predicate over (HostState, request context). The Chain
applies a configured ordered list of filters to the live-host snapshot;
only hosts passing every filter proceed to weighing. There is no partial
credit; filtering is conjunctive, so removing a filter can only grow the
surviving set, and order affects nothing but performance.

# Built-in Filters

  - capacity: free (thick) or virtual free (thin, oversubscribed)
    capacity must cover the requested size
  - capabilities: "capabilities:"-scoped extra specs must match declared
    host capabilities, with exact, <is>, <in>, <or>, and numeric matchers
  - availability_zone: host zone must be in the resolved acceptable set
  - driver: optional user-authored boolean expression (pkg/evaluator)
  - same_backend / different_backend: affinity constraints prepended by
    the resolver, not configured directly

Chains are built by name from configuration through a registry, so
deployments can reorder or drop stages without code changes, and tests can
register synthetic filters.

# Diagnostics

Run returns a Diagnostics value recording which filter eliminated which
hosts. The scheduler folds its Summary into NoValidHost errors when
diagnostics are enabled, which turns "nothing fits" from a dead end into
an answer.
*/
package filter
