package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates a device from options. The returned device is not yet open.
type Factory func(o *Options) (Device, error)

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// Register makes a backend available under name. It should be called from
// backend package init() functions. Names are case-insensitive.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = f
}

// New creates a device of the named backend. A nil o uses zero options.
func New(name string, o *Options) (Device, error) {
	registryMu.RLock()
	f := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("unknown device type %q (available: %s)", name, strings.Join(Types(), ", "))
	}
	if o == nil {
		o = &Options{}
	}
	return f(o)
}

// Types returns the registered backend names in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
