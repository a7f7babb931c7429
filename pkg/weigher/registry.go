package weigher

import (
	"fmt"
	"sort"

	"github.com/stevedore-io/stevedore/pkg/config"
)

// Deps carries collaborators a weigher may need at construction.
type Deps struct {
	Counter VolumeCounter
}

// Factory builds a weigher from configuration and dependencies.
type Factory func(cfg *config.SchedulerConfig, deps Deps) Weigher

var registry = map[string]Factory{
	"capacity": func(*config.SchedulerConfig, Deps) Weigher { return &CapacityWeigher{} },
	"volume_number": func(_ *config.SchedulerConfig, deps Deps) Weigher {
		return NewVolumeNumberWeigher(deps.Counter)
	},
	"goodness": func(cfg *config.SchedulerConfig, _ Deps) Weigher {
		return NewGoodnessWeigher(cfg.GoodnessFunction)
	},
}

// Register adds a weigher factory under a name; duplicates panic.
func Register(name string, f Factory) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("weigher %q registered twice", name))
	}
	registry[name] = f
}

// Names lists the registered weigher names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildChain resolves the configured weigher list against the registry.
// Multipliers are validated non-zero at config load; an unknown name is
// a startup error.
func BuildChain(cfg *config.SchedulerConfig, deps Deps) (*Chain, error) {
	chain := NewChain()
	for _, wc := range cfg.Weighers {
		factory, ok := registry[wc.Name]
		if !ok {
			return nil, fmt.Errorf("unknown weigher %q (registered: %v)", wc.Name, Names())
		}
		chain.Add(factory(cfg, deps), wc.Multiplier)
	}
	return chain, nil
}
