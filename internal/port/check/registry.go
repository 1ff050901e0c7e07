package check

import (
	"fmt"
	"sync"
)

// Factory is a constructor function that creates a new Check instance.
type Factory func(deps Deps) (Check, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a check factory available by name.
// It is typically called from an init() function in the adapter package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("check: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New creates a new Check by name using the registered factory.
func New(name string, deps Deps) (Check, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("check: unknown check %q", name)
	}
	return factory(deps)
}

// Available returns the names of all registered checks.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
