/*
Package events provides an in-process publish/subscribe broker for scheduler
events.

Capability-report ingestion, the staleness monitor, and the scheduler driver
publish; the API layer streams events to clients over SSE. Event types cover
the full placement lifecycle (placement.dispatched, placement.retried,
placement.succeeded, placement.failed) and back-end liveness changes
(report.applied, backend.stale, backend.disabled, backend.enabled).

Delivery is best-effort: each subscriber has a bounded buffer and slow
subscribers miss events rather than backpressuring the scheduler.
*/
package events
