package notifier

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Notifier from its flat configuration map.
type Factory func(config map[string]string) (Notifier, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a notifier factory available by kind. It is called from
// an init() function in the adapter package and panics on duplicates.
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", kind))
	}
	factories[kind] = factory
}

// New creates a Notifier of the given kind using its registered factory.
func New(kind string, config map[string]string) (Notifier, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("notifier: unknown kind %q", kind)
	}
	return factory(config)
}

// Available returns the registered notifier kinds, sorted.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
