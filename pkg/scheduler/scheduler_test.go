package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevedore-io/stevedore/pkg/catalog"
	"github.com/stevedore-io/stevedore/pkg/config"
	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/hoststate"
	"github.com/stevedore-io/stevedore/pkg/resolver"
	"github.com/stevedore-io/stevedore/pkg/types"
	"github.com/stevedore-io/stevedore/pkg/weigher"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []*types.Placement
}

func (d *fakeDispatcher) Dispatch(_ context.Context, p *types.Placement, _ *types.RequestSpec) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, p)
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeReserver struct {
	mu       sync.Mutex
	reserved map[string]string
	released []string
}

func newFakeReserver() *fakeReserver {
	return &fakeReserver{reserved: make(map[string]string)}
}

func (f *fakeReserver) Reserve(p *types.Placement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserved[p.RequestID] = p.Backend()
}

func (f *fakeReserver) Release(requestID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reserved, requestID)
	f.released = append(f.released, requestID)
}

func report(host string, free, total float64) *types.CapabilityReport {
	return &types.CapabilityReport{
		Host:                     host,
		TotalCapacity:            types.NewCapacity(total),
		FreeCapacity:             types.NewCapacity(free),
		ThickProvisioningSupport: true,
		VolumeBackendName:        host,
		StorageProtocol:          "iSCSI",
	}
}

type harness struct {
	sched      *Scheduler
	repo       *hoststate.Repository
	dispatcher *fakeDispatcher
	reserver   *fakeReserver
	catalog    *catalog.Catalog
}

func newHarness(t *testing.T, mut func(*Options)) *harness {
	t.Helper()

	repo := hoststate.NewRepository(5 * time.Minute)
	cat := catalog.New()
	cfg := config.Default()

	filters, err := filter.BuildChain(&cfg.Scheduler)
	require.NoError(t, err)
	weighers, err := weigher.BuildChain(&cfg.Scheduler, weigher.Deps{Counter: cat})
	require.NoError(t, err)

	d := &fakeDispatcher{}
	rsv := newFakeReserver()
	opts := Options{
		Repository: repo,
		Resolver:   resolver.New(cat, ""),
		Filters:    filters,
		Weighers:   weighers,
		Dispatcher: d,
		Reserver:   rsv,
		MaxRetries: 3,
	}
	if mut != nil {
		mut(&opts)
	}
	sched, err := New(opts)
	require.NoError(t, err)
	return &harness{sched: sched, repo: repo, dispatcher: d, reserver: rsv, catalog: cat}
}

func (h *harness) apply(t *testing.T, reports ...*types.CapabilityReport) {
	t.Helper()
	for _, r := range reports {
		_, err := h.repo.Apply(r)
		require.NoError(t, err)
	}
}

func TestScheduleDispatchesTopRanked(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 100, 200), report("host-b", 500, 600), report("host-c", 50, 200))

	p, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)

	assert.Equal(t, "host-b", p.Host)
	assert.Equal(t, 1, p.Attempt)
	assert.Equal(t, 1, h.sched.Inflight())

	h.reserver.mu.Lock()
	assert.Equal(t, "host-b", h.reserver.reserved["req-1"])
	h.reserver.mu.Unlock()
}

func TestNoValidHostIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 5, 200))

	_, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 50})

	var nvh *types.NoValidHostError
	require.True(t, errors.As(err, &nvh))
	assert.Equal(t, 0, h.sched.Inflight())
	assert.Equal(t, 0, h.dispatcher.count())
}

func TestNoValidHostDiagnostics(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Diagnostics = true })
	h.apply(t, report("host-a", 5, 200))

	_, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 50})

	var nvh *types.NoValidHostError
	require.True(t, errors.As(err, &nvh))
	assert.Contains(t, nvh.Reason, "capacity")
}

func TestRetryWalksOriginalRanking(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxRetries = 1 })
	h.apply(t, report("host-a", 500, 600), report("host-b", 100, 200))

	p, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)
	require.Equal(t, "host-a", p.Host)

	res, err := h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a",
		Status: types.OutcomeRetryableFailure, Detail: "backend rejected",
	})
	require.NoError(t, err)
	require.Equal(t, StateDispatched, res.State)
	assert.Equal(t, "host-b", res.Placement.Host)
	assert.Equal(t, 2, res.Placement.Attempt)

	res, err = h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-b",
		Status: types.OutcomeRetryableFailure, Detail: "also out of space",
	})
	require.NoError(t, err)
	require.Equal(t, StateFailed, res.State)

	var exhausted *types.RetriesExhaustedError
	require.True(t, errors.As(res.Err, &exhausted))
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Contains(t, exhausted.Last.Error(), "also out of space")
	assert.Equal(t, 0, h.sched.Inflight())
}

func TestAttemptsNeverExceedBound(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxRetries = 2 })
	h.apply(t,
		report("host-a", 500, 600), report("host-b", 400, 600),
		report("host-c", 300, 600), report("host-d", 200, 600),
		report("host-e", 100, 600))

	p, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)

	attempts := 1
	for {
		res, err := h.sched.HandleOutcome(&types.Outcome{
			RequestID: "req-1", Host: p.Host,
			Status: types.OutcomeRetryableFailure, Detail: "rejected",
		})
		require.NoError(t, err)
		if res.State == StateFailed {
			break
		}
		p = res.Placement
		attempts = p.Attempt
	}
	assert.Equal(t, 3, attempts)
}

func TestRankedListExhaustedBeforeBound(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxRetries = 5 })
	h.apply(t, report("host-a", 500, 600))

	_, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)

	res, err := h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a",
		Status: types.OutcomeRetryableFailure, Detail: "rejected",
	})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
}

func TestFatalFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 500, 600), report("host-b", 400, 600))

	_, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)

	res, err := h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a",
		Status: types.OutcomeFatalFailure, Detail: "malformed request",
	})
	require.NoError(t, err)
	require.Equal(t, StateFailed, res.State)

	var de *types.DispatchError
	require.True(t, errors.As(res.Err, &de))
	assert.False(t, de.Retryable)
	assert.Equal(t, 0, h.sched.Inflight())
}

func TestSuccessReleasesReservation(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 500, 600))

	_, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)

	res, err := h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a", Status: types.OutcomeSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "host-a", res.Placement.Host)
	assert.Equal(t, 0, h.sched.Inflight())

	h.reserver.mu.Lock()
	assert.Contains(t, h.reserver.released, "req-1")
	h.reserver.mu.Unlock()
}

func TestStaleOutcomeIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 500, 600), report("host-b", 400, 600))

	_, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)

	res, err := h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a",
		Status: types.OutcomeRetryableFailure, Detail: "rejected",
	})
	require.NoError(t, err)
	require.Equal(t, "host-b", res.Placement.Host)

	// A late verdict from the first host must not disturb the retry.
	res, err = h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a", Status: types.OutcomeSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, res.State)
	assert.Equal(t, "host-b", res.Placement.Host)
	assert.Equal(t, 1, h.sched.Inflight())
}

func TestOutcomeWithBackendKeyDisambiguatesPools(t *testing.T) {
	h := newHarness(t, nil)
	r1 := report("host-a", 500, 600)
	r1.Pool = "p1"
	r2 := report("host-a", 100, 200)
	r2.Pool = "p2"
	h.apply(t, r1, r2)

	p, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)
	require.Equal(t, "host-a#p1", p.Backend())

	res, err := h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a#p1",
		Status: types.OutcomeRetryableFailure, Detail: "rejected",
	})
	require.NoError(t, err)
	require.Equal(t, StateDispatched, res.State)
	require.Equal(t, "host-a#p2", res.Placement.Backend())

	// A late verdict keyed to the first pool must not burn a retry on
	// the second.
	res, err = h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a#p1",
		Status: types.OutcomeRetryableFailure, Detail: "rejected again",
	})
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, res.State)
	assert.Equal(t, "host-a#p2", res.Placement.Backend())
	assert.Equal(t, 2, res.Placement.Attempt)

	// The current pool's verdict, keyed the same way, still lands.
	res, err = h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-a#p2", Status: types.OutcomeSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, 0, h.sched.Inflight())
}

func TestOutcomeForUnknownRequest(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.sched.HandleOutcome(&types.Outcome{RequestID: "req-x", Host: "host-a", Status: types.OutcomeSuccess})
	assert.Error(t, err)
}

func TestCancelledBeforeDispatch(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 500, 600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.sched.Schedule(ctx, &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.sched.Inflight())
	assert.Equal(t, 0, h.dispatcher.count())
}

func TestDuplicateRequestRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 500, 600))

	spec := &types.RequestSpec{RequestID: "req-1", SizeGB: 10}
	_, err := h.sched.Schedule(context.Background(), spec)
	require.NoError(t, err)

	_, err = h.sched.Schedule(context.Background(), spec)
	assert.Error(t, err)
}

func TestResolverConflictPropagates(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 500, 600))
	h.catalog.PinGroup("grp-1", "zoneB")

	_, err := h.sched.Schedule(context.Background(), &types.RequestSpec{
		RequestID:        "req-1",
		SizeGB:           10,
		AvailabilityZone: "zoneA",
		GroupID:          "grp-1",
	})

	var conflict *types.SpecificationConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestMandatoryFiltersApply(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(t, report("host-a", 500, 600), report("host-b", 100, 200))
	require.NoError(t, h.catalog.AddVolume(catalog.VolumeRecord{ID: "vol-1", Host: "host-a"}))

	p, err := h.sched.Schedule(context.Background(), &types.RequestSpec{
		RequestID: "req-1",
		SizeGB:    10,
		Hints:     types.SchedulerHints{DifferentHost: []string{"vol-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "host-b", p.Host)
}

func TestAckTimeoutTriggersRetry(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.MaxRetries = 1
		o.AckTimeout = 50 * time.Millisecond
	})
	h.apply(t, report("host-a", 500, 600), report("host-b", 400, 600))

	p, err := h.sched.Schedule(context.Background(), &types.RequestSpec{RequestID: "req-1", SizeGB: 10})
	require.NoError(t, err)
	require.Equal(t, "host-a", p.Host)

	require.Eventually(t, func() bool {
		return h.dispatcher.count() == 2
	}, time.Second, 2*time.Millisecond)

	res, err := h.sched.HandleOutcome(&types.Outcome{
		RequestID: "req-1", Host: "host-b", Status: types.OutcomeSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
}
