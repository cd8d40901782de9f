package protocols

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a configured protocol instance.
type Factory func(opts ...Option) Protocol

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

func init() {
	Register("dooya_dc90", func(opts ...Option) Protocol { return NewDooya(opts...) })
	Register("voltomat", func(opts ...Option) Protocol { return NewVoltomat(opts...) })
	Register("arctech_dimmer", func(opts ...Option) Protocol { return NewArctechDimmer(opts...) })
}

// Register adds a protocol factory under name. Registering a name twice
// panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("protocols: %s registered twice", name))
	}
	registry[name] = f
}

// Lookup builds the protocol registered under name.
func Lookup(name string, opts ...Option) (Protocol, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q", name)
	}
	return f(opts...), nil
}

// Known reports whether name is registered.
func Known(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Names returns the registered protocol names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All builds every registered protocol, sorted by name.
func All(opts ...Option) []Protocol {
	out, _ := Select(Names(), opts...)
	return out
}

// Select builds the named protocols in the given order. An empty list
// selects every protocol.
func Select(names []string, opts ...Option) ([]Protocol, error) {
	if len(names) == 0 {
		names = Names()
	}
	out := make([]Protocol, 0, len(names))
	for _, n := range names {
		p, err := Lookup(n, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
