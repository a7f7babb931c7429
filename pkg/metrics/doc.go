/*
Package metrics exposes Prometheus metrics for the Stevedore scheduler.

Metrics are package-level collectors registered at init and served on
/metrics through Handler(). The set covers the three moving parts of the
scheduler:

Repository:
  - stevedore_backends_known / stevedore_backends_live gauges
  - stevedore_backends_pruned_total, stevedore_capability_reports_total

Scheduling:
  - stevedore_scheduling_latency_seconds (request receipt to first dispatch)
  - stevedore_placements_total{result="succeeded|no_valid_host|conflict|failed"}
  - stevedore_dispatch_retries_total
  - stevedore_filter_eliminations_total{filter} for no-valid-host triage

API:
  - stevedore_api_requests_total{method,status}
  - stevedore_api_request_duration_seconds{method}

The Timer helper measures one operation and feeds a histogram:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

Useful alerts: a falling stevedore_backends_live with steady
stevedore_backends_known means back ends are reporting but going stale;
a rising no_valid_host rate with nonzero eliminations on a single filter
usually points at a misconfigured filter expression or exhausted capacity.
*/
package metrics
