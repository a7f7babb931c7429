package filter

import (
	"fmt"
	"sort"

	"github.com/stevedore-io/stevedore/pkg/config"
)

// Factory builds a filter from the scheduler configuration. Construction
// must not validate expressions eagerly; a malformed expression is a
// request-time error, not a startup failure.
type Factory func(cfg *config.SchedulerConfig) Filter

var registry = map[string]Factory{
	"capacity":          func(*config.SchedulerConfig) Filter { return &CapacityFilter{} },
	"capabilities":      func(*config.SchedulerConfig) Filter { return &CapabilitiesFilter{} },
	"availability_zone": func(*config.SchedulerConfig) Filter { return &AvailabilityZoneFilter{} },
	"driver": func(cfg *config.SchedulerConfig) Filter {
		return NewDriverFilter(cfg.FilterFunction)
	},
}

// Register adds a filter factory under a name. Registering a duplicate name
// panics; that is a programming error, not a configuration one.
func Register(name string, f Factory) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("filter %q registered twice", name))
	}
	registry[name] = f
}

// Names lists the registered filter names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildChain resolves the configured ordered name list against the
// registry. An unknown name is a configuration error at startup.
func BuildChain(cfg *config.SchedulerConfig) (*Chain, error) {
	filters := make([]Filter, 0, len(cfg.Filters))
	for _, name := range cfg.Filters {
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown filter %q (registered: %v)", name, Names())
		}
		filters = append(filters, factory(cfg))
	}
	return NewChain(filters...), nil
}
