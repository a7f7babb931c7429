package weigher

import (
	"sync"

	"github.com/stevedore-io/stevedore/pkg/evaluator"
	"github.com/stevedore-io/stevedore/pkg/filter"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// GoodnessWeigher scores hosts with a user-authored expression expected to
// yield 0-100; results are clamped to that range. An empty expression
// scores everything 0. Like the driver filter, compilation is deferred so
// a malformed expression fails the request that evaluates it.
type GoodnessWeigher struct {
	src string

	once       sync.Once
	compiled   *evaluator.Evaluator
	compileErr error
}

// NewGoodnessWeigher creates the weigher for a configured expression.
func NewGoodnessWeigher(expression string) *GoodnessWeigher {
	return &GoodnessWeigher{src: expression}
}

func (w *GoodnessWeigher) Name() string { return "goodness" }

func (w *GoodnessWeigher) Weigh(host *types.HostState, ctx *filter.Context) (float64, error) {
	if w.src == "" {
		return 0, nil
	}
	w.once.Do(func() {
		w.compiled, w.compileErr = evaluator.Compile(w.src)
	})
	if w.compileErr != nil {
		return 0, w.compileErr
	}
	score, err := w.compiled.EvalFloat(evaluator.Properties(host, ctx.Spec))
	if err != nil {
		return 0, err
	}
	if score < 0 {
		return 0, nil
	}
	if score > 100 {
		return 100, nil
	}
	return score, nil
}
