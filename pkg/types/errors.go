package types

import "fmt"

// SpecificationConflictError means the request asked for something
// contradictory: conflicting availability-zone sources, incompatible
// affinity hints, or an invalid size. Client error, never retried.
type SpecificationConflictError struct {
	Reason string
}

func (e *SpecificationConflictError) Error() string {
	return fmt.Sprintf("specification conflict: %s", e.Reason)
}

// NoValidHostError means the filter chain eliminated every candidate.
// Retrying within the same request cannot change the outcome.
type NoValidHostError struct {
	Reason string
}

func (e *NoValidHostError) Error() string {
	if e.Reason == "" {
		return "no valid host was found"
	}
	return fmt.Sprintf("no valid host was found: %s", e.Reason)
}

// ConfigurationError means a configured filter or weigher expression is
// malformed. Surfaced at request time instead of crashing the scheduler.
type ConfigurationError struct {
	Expression string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %q: %s", e.Expression, e.Reason)
}

// DispatchError wraps a worker-reported failure for a dispatched placement.
// Retryable failures are re-dispatched against the next-ranked host; fatal
// ones surface immediately.
type DispatchError struct {
	Host      string
	Retryable bool
	Detail    string
}

func (e *DispatchError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s dispatch failure on %s: %s", kind, e.Host, e.Detail)
}

// RetriesExhaustedError terminates the retry loop, carrying the root cause
// from the last attempt.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("placement failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }
