// Package scheduler orchestrates one placement decision end to end:
// resolve the request, filter the live backend snapshot, weigh the
// survivors, dispatch the top-ranked backend to the worker boundary and
// absorb retryable failures by walking the already-computed ranking,
// bounded by the configured retry count. All per-request state is held
// in memory and discarded on the terminal transition.
package scheduler
