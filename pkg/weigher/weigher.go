package weigher

import (
	"math"
	"sort"

	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// Weigher is a soft placement preference: it scores a host for a request.
// Raw scores are normalized per weigher before combining, so a weigher may
// use any convenient unit.
type Weigher interface {
	Name() string
	Weigh(host *types.HostState, ctx *filter.Context) (float64, error)
}

type weighted struct {
	weigher    Weigher
	multiplier float64
}

// Chain combines weighers into one ranking. Per host, the combined weight
// is the sum over weighers of normalized(score) * multiplier; a negative
// multiplier turns a preference into an aversion.
type Chain struct {
	weighers []weighted
}

// NewChain builds a chain from weigher/multiplier pairs.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a weigher with its multiplier and returns the chain.
func (c *Chain) Add(w Weigher, multiplier float64) *Chain {
	c.weighers = append(c.weighers, weighted{weigher: w, multiplier: multiplier})
	return c
}

// Rank scores every host and returns them sorted best-first. Exact ties
// break by back-end key so identical inputs always produce identical
// order; reproducibility here is load-bearing for the retry loop, which
// replays this ranking without recomputing it.
func (c *Chain) Rank(hosts []*types.HostState, ctx *filter.Context) ([]*types.WeighedHost, error) {
	if len(hosts) == 0 {
		return nil, nil
	}

	combined := make([]float64, len(hosts))
	logger := log.WithComponent("weigher")

	for _, entry := range c.weighers {
		raw := make([]float64, len(hosts))
		for i, h := range hosts {
			score, err := entry.weigher.Weigh(h, ctx)
			if err != nil {
				return nil, err
			}
			raw[i] = score
		}
		for i, norm := range normalize(raw) {
			combined[i] += norm * entry.multiplier
		}
		logger.Debug().
			Str("weigher", entry.weigher.Name()).
			Str("request_id", ctx.Spec.RequestID).
			Floats64("raw", raw).
			Msg("weigher scores")
	}

	ranked := make([]*types.WeighedHost, len(hosts))
	for i, h := range hosts {
		ranked[i] = &types.WeighedHost{Host: h, Weight: combined[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		return ranked[i].Host.Key() < ranked[j].Host.Key()
	})
	return ranked, nil
}

// normalize maps raw scores onto [0,1] with min-max scaling, which is
// monotonic and therefore preserves each weigher's relative ordering.
// A degenerate span (all scores equal) maps every host to 0 so the
// dimension simply stops discriminating. Positive infinities (unbounded
// capacity) pin to 1 with finite values scaled beneath them.
func normalize(raw []float64) []float64 {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	hasInf := false
	for _, v := range raw {
		if math.IsInf(v, 1) {
			hasInf = true
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(raw))
	span := hi - lo
	for i, v := range raw {
		switch {
		case math.IsInf(v, 1):
			out[i] = 1
		case span <= 0 || math.IsInf(span, 0) || math.IsNaN(span):
			out[i] = 0
		case hasInf:
			// Keep finite values strictly below the infinite ones.
			out[i] = (v - lo) / span * 0.5
		default:
			out[i] = (v - lo) / span
		}
	}
	return out
}
