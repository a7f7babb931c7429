// Package api exposes the scheduler over HTTP: capability-report
// ingestion, placement requests, worker outcome events, and the
// administrative query surface for backends, volumes and the decision
// journal. Events stream out over SSE; Prometheus metrics are served
// on /metrics.
package api
