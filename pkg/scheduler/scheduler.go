package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stevedore-io/stevedore/pkg/events"
	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/hoststate"
	"github.com/stevedore-io/stevedore/pkg/journal"
	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/metrics"
	"github.com/stevedore-io/stevedore/pkg/resolver"
	"github.com/stevedore-io/stevedore/pkg/types"
	"github.com/stevedore-io/stevedore/pkg/weigher"
)

// State tracks where a request is in its scheduling lifecycle.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateFiltered   State = "FILTERED"
	StateWeighed    State = "WEIGHED"
	StateDispatched State = "DISPATCHED"
	StateSucceeded  State = "SUCCEEDED"
	StateRetry      State = "RETRY"
	StateFailed     State = "FAILED"
)

// Dispatcher is the asynchronous hand-off to the volume-creation worker
// boundary. Dispatch must not block on the work itself: the worker
// reports back later through HandleOutcome. A Dispatch error counts as a
// retryable failure for that host.
type Dispatcher interface {
	Dispatch(ctx context.Context, p *types.Placement, spec *types.RequestSpec) error
}

// Reserver lets the scheduler mark dispatched placements as occupying a
// backend before the backend's next capability report. The catalog
// implements it.
type Reserver interface {
	Reserve(p *types.Placement)
	Release(requestID string)
}

// Recorder is the audit-log boundary. The journal implements it.
type Recorder interface {
	RecordDecision(e journal.Entry) error
	RecordOutcome(o *types.Outcome) error
}

// Result reports the transition a worker outcome caused.
type Result struct {
	RequestID string
	State     State
	// Placement is the active dispatch after the transition: the winning
	// placement on SUCCEEDED, the re-dispatch on a retry.
	Placement *types.Placement
	// Err carries the terminal cause when State is FAILED.
	Err error
}

// Options wires a Scheduler. Broker, Journal and Reserver may be nil.
type Options struct {
	Repository  *hoststate.Repository
	Resolver    *resolver.Resolver
	Filters     *filter.Chain
	Weighers    *weigher.Chain
	Dispatcher  Dispatcher
	Broker      *events.Broker
	Journal     Recorder
	Reserver    Reserver
	MaxRetries  int
	AckTimeout  time.Duration
	Diagnostics bool
}

// Scheduler drives placement requests through resolve, filter, weigh and
// dispatch, and owns the bounded retry loop. Filtering and weighing run
// once per request against one repository snapshot; retries walk the
// ranked list computed then, they never recompute it. Capacity is read
// optimistically, so two concurrent requests can both pick a backend
// that only fits one: the losing dispatch comes back as a retryable
// failure and the retry loop absorbs it.
type Scheduler struct {
	repo        *hoststate.Repository
	resolver    *resolver.Resolver
	filters     *filter.Chain
	weighers    *weigher.Chain
	dispatcher  Dispatcher
	broker      *events.Broker
	journal     Recorder
	reserver    Reserver
	maxRetries  int
	ackTimeout  time.Duration
	diagnostics bool

	mu       sync.Mutex
	inflight map[string]*request
}

// request is the in-memory retry state for one dispatched placement.
// Discarded on any terminal transition.
type request struct {
	spec      *types.RequestSpec
	ranked    []*types.WeighedHost
	next      int // index of the next candidate in ranked
	attempts  int // dispatches so far
	state     State
	placement *types.Placement
	lastErr   error
	ackTimer  *time.Timer
}

func New(opts Options) (*Scheduler, error) {
	if opts.Repository == nil || opts.Resolver == nil || opts.Filters == nil || opts.Weighers == nil {
		return nil, fmt.Errorf("scheduler needs a repository, resolver, filter chain and weigher chain")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("scheduler needs a dispatcher")
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative")
	}
	return &Scheduler{
		repo:        opts.Repository,
		resolver:    opts.Resolver,
		filters:     opts.Filters,
		weighers:    opts.Weighers,
		dispatcher:  opts.Dispatcher,
		broker:      opts.Broker,
		journal:     opts.Journal,
		reserver:    opts.Reserver,
		maxRetries:  opts.MaxRetries,
		ackTimeout:  opts.AckTimeout,
		diagnostics: opts.Diagnostics,
		inflight:    make(map[string]*request),
	}, nil
}

// Schedule runs one placement request up to its first dispatch and
// returns the chosen placement. Later outcomes re-enter through
// HandleOutcome. Zero survivors is a NoValidHostError, never a retry:
// without new information a second pass cannot end differently.
func (s *Scheduler) Schedule(ctx context.Context, spec *types.RequestSpec) (*types.Placement, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	res, err := s.resolver.Resolve(spec)
	if err != nil {
		metrics.PlacementsTotal.WithLabelValues("conflict").Inc()
		s.recordFailure(spec.RequestID, err)
		return nil, err
	}

	s.mu.Lock()
	if _, dup := s.inflight[spec.RequestID]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("request %s is already being scheduled", spec.RequestID)
	}
	s.mu.Unlock()

	chain := s.filters
	if len(res.Mandatory) > 0 {
		chain = chain.Append(res.Mandatory...)
	}

	snapshot := s.repo.Snapshot()
	survivors, diag, err := chain.Run(snapshot, res.Context)
	if err != nil {
		metrics.PlacementsTotal.WithLabelValues("configuration_error").Inc()
		s.recordFailure(spec.RequestID, err)
		return nil, err
	}
	if len(survivors) == 0 {
		reason := fmt.Sprintf("%d backends considered, none survived filtering", len(snapshot))
		if s.diagnostics {
			reason = diag.Summary()
		}
		nvh := &types.NoValidHostError{Reason: reason}
		metrics.PlacementsTotal.WithLabelValues("no_valid_host").Inc()
		s.recordFailure(spec.RequestID, nvh)
		s.publish(events.EventPlacementFailed, spec.RequestID, "", nvh.Error())
		return nil, nvh
	}

	ranked, err := s.weighers.Rank(survivors, res.Context)
	if err != nil {
		metrics.PlacementsTotal.WithLabelValues("configuration_error").Inc()
		s.recordFailure(spec.RequestID, err)
		return nil, err
	}

	// The caller walked away before anything was dispatched: discard the
	// computed ranking, there is nothing to roll back.
	if err := ctx.Err(); err != nil {
		log.WithRequestID(spec.RequestID).Debug().Msg("request cancelled before dispatch")
		return nil, err
	}

	r := &request{spec: spec, ranked: ranked, state: StateWeighed}
	s.mu.Lock()
	if _, dup := s.inflight[spec.RequestID]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("request %s is already being scheduled", spec.RequestID)
	}
	s.inflight[spec.RequestID] = r
	placement := s.dispatchLocked(ctx, r)
	s.mu.Unlock()

	log.WithRequestID(spec.RequestID).Info().
		Str("backend", placement.Backend()).
		Int("candidates", len(ranked)).
		Msg("placement dispatched")
	return placement, nil
}

// dispatchLocked hands the next ranked candidate to the worker boundary.
// Caller holds s.mu.
func (s *Scheduler) dispatchLocked(ctx context.Context, r *request) *types.Placement {
	candidate := r.ranked[r.next]
	r.next++
	r.attempts++

	p := &types.Placement{
		RequestID: r.spec.RequestID,
		Host:      candidate.Host.Host,
		Pool:      candidate.Host.Pool,
		Attempt:   r.attempts,
	}
	r.placement = p
	r.state = StateDispatched

	if s.reserver != nil {
		s.reserver.Reserve(p)
	}
	if s.journal != nil {
		if err := s.journal.RecordDecision(journal.Entry{
			RequestID: p.RequestID,
			Attempt:   p.Attempt,
			Backend:   p.Backend(),
		}); err != nil {
			log.WithRequestID(p.RequestID).Warn().Err(err).Msg("journal write failed")
		}
	}

	evt := events.EventPlacementDispatched
	if r.attempts > 1 {
		evt = events.EventPlacementRetried
	}
	s.publish(evt, p.RequestID, p.Backend(), "")

	if s.ackTimeout > 0 {
		backend := p.Backend()
		attempt := p.Attempt
		r.ackTimer = time.AfterFunc(s.ackTimeout, func() {
			s.ackTimedOut(r.spec.RequestID, backend, attempt)
		})
	}

	// Fire-and-forget hand-off. A synchronous dispatch error re-enters
	// the retry machine like any worker-reported retryable failure.
	go func() {
		if err := s.dispatcher.Dispatch(ctx, p, r.spec); err != nil {
			_, _ = s.HandleOutcome(&types.Outcome{
				RequestID: p.RequestID,
				Host:      p.Host,
				Status:    types.OutcomeRetryableFailure,
				Detail:    fmt.Sprintf("dispatch failed: %v", err),
			})
		}
	}()
	return p
}

// ackTimedOut injects a synthetic retryable outcome for a dispatch that
// was never acknowledged. The attempt guard drops the timeout when a
// real outcome already advanced the request.
func (s *Scheduler) ackTimedOut(requestID, backend string, attempt int) {
	s.mu.Lock()
	r, ok := s.inflight[requestID]
	stale := !ok || r.placement == nil || r.placement.Attempt != attempt
	s.mu.Unlock()
	if stale {
		return
	}
	log.WithRequestID(requestID).Warn().
		Str("backend", backend).
		Dur("timeout", s.ackTimeout).
		Msg("no worker acknowledgement, treating as retryable failure")
	_, _ = s.HandleOutcome(&types.Outcome{
		RequestID: requestID,
		Host:      backend,
		Status:    types.OutcomeRetryableFailure,
		Detail:    fmt.Sprintf("no acknowledgement within %s", s.ackTimeout),
	})
}

// outcomeMatches reports whether an outcome naming host refers to the
// placement p. Workers usually report the bare hostname, but a full
// host#pool backend key is accepted and disambiguates retries that
// moved between pools of the same host.
func outcomeMatches(p *types.Placement, host string) bool {
	if strings.Contains(host, "#") {
		return host == p.Backend()
	}
	return host == p.Host
}

// HandleOutcome re-enters the retry state machine with a worker's
// verdict. Outcomes for unknown requests error; outcomes for a backend
// other than the currently dispatched one are stale and ignored.
func (s *Scheduler) HandleOutcome(o *types.Outcome) (*Result, error) {
	if s.journal != nil {
		if err := s.journal.RecordOutcome(o); err != nil {
			log.WithRequestID(o.RequestID).Warn().Err(err).Msg("journal write failed")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.inflight[o.RequestID]
	if !ok {
		return nil, fmt.Errorf("no in-flight placement for request %s", o.RequestID)
	}
	if r.state != StateDispatched || !outcomeMatches(r.placement, o.Host) {
		log.WithRequestID(o.RequestID).Debug().
			Str("host", o.Host).
			Msg("ignoring stale outcome")
		return &Result{RequestID: o.RequestID, State: r.state, Placement: r.placement, Err: r.lastErr}, nil
	}
	if r.ackTimer != nil {
		r.ackTimer.Stop()
		r.ackTimer = nil
	}

	switch o.Status {
	case types.OutcomeSuccess:
		r.state = StateSucceeded
		metrics.PlacementsTotal.WithLabelValues("succeeded").Inc()
		s.publish(events.EventPlacementSucceeded, o.RequestID, r.placement.Backend(), "")
		log.WithRequestID(o.RequestID).Info().
			Str("backend", r.placement.Backend()).
			Int("attempts", r.attempts).
			Msg("placement succeeded")
		res := &Result{RequestID: o.RequestID, State: StateSucceeded, Placement: r.placement}
		s.finishLocked(o.RequestID)
		return res, nil

	case types.OutcomeRetryableFailure:
		r.lastErr = &types.DispatchError{Host: o.Host, Retryable: true, Detail: o.Detail}
		r.state = StateRetry
		metrics.DispatchRetries.Inc()

		if r.attempts >= s.maxRetries+1 || r.next >= len(r.ranked) {
			return s.failLocked(r, &types.RetriesExhaustedError{Attempts: r.attempts, Last: r.lastErr}), nil
		}
		p := s.dispatchLocked(context.Background(), r)
		return &Result{RequestID: o.RequestID, State: StateDispatched, Placement: p}, nil

	default:
		r.lastErr = &types.DispatchError{Host: o.Host, Retryable: false, Detail: o.Detail}
		return s.failLocked(r, r.lastErr), nil
	}
}

// failLocked records a terminal failure and drops the request.
func (s *Scheduler) failLocked(r *request, cause error) *Result {
	r.state = StateFailed
	metrics.PlacementsTotal.WithLabelValues("failed").Inc()
	s.recordFailure(r.spec.RequestID, cause)
	s.publish(events.EventPlacementFailed, r.spec.RequestID, r.placement.Backend(), cause.Error())
	log.WithRequestID(r.spec.RequestID).Error().
		Err(cause).
		Int("attempts", r.attempts).
		Msg("placement failed")
	res := &Result{RequestID: r.spec.RequestID, State: StateFailed, Err: cause}
	s.finishLocked(r.spec.RequestID)
	return res
}

// finishLocked releases the catalog reservation and forgets the request.
// Nothing is retained past the retry loop.
func (s *Scheduler) finishLocked(requestID string) {
	if s.reserver != nil {
		s.reserver.Release(requestID)
	}
	delete(s.inflight, requestID)
}

// Inflight reports how many requests sit between dispatch and outcome.
func (s *Scheduler) Inflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Scheduler) recordFailure(requestID string, cause error) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordDecision(journal.Entry{RequestID: requestID, Error: cause.Error()}); err != nil {
		log.WithRequestID(requestID).Warn().Err(err).Msg("journal write failed")
	}
}

func (s *Scheduler) publish(t events.EventType, requestID, backend, msg string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{Type: t, RequestID: requestID, Backend: backend, Message: msg})
}
