package filter

import (
	"sync"

	"github.com/stevedore-io/stevedore/pkg/evaluator"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// DriverFilter evaluates a user-authored boolean expression against the
// host and request properties. An empty expression passes everything. A
// malformed expression surfaces as a ConfigurationError on the first
// request that evaluates it, never as a silent pass.
type DriverFilter struct {
	src string

	once       sync.Once
	compiled   *evaluator.Evaluator
	compileErr error
}

// NewDriverFilter creates the filter; compilation is deferred to first use
// so a bad expression fails the request that needs it instead of the
// daemon.
func NewDriverFilter(expression string) *DriverFilter {
	return &DriverFilter{src: expression}
}

func (f *DriverFilter) Name() string { return "driver" }

func (f *DriverFilter) Matches(host *types.HostState, ctx *Context) (bool, error) {
	if f.src == "" {
		return true, nil
	}
	f.once.Do(func() {
		f.compiled, f.compileErr = evaluator.Compile(f.src)
	})
	if f.compileErr != nil {
		return false, f.compileErr
	}
	return f.compiled.EvalBool(evaluator.Properties(host, ctx.Spec))
}
