package remote

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Config holds what a driver needs to open a remote store.
type Config struct {
	// Driver names the registered driver to use ("postgres", "mongo").
	Driver string

	// DSN is the driver-specific connection string.
	DSN string

	// Database is the database name, for drivers that do not encode
	// it in the DSN.
	Database string

	// Logger for driver activity. Optional.
	Logger *log.Logger
}

// Constructor creates a Store from a Config.
// Implementations register themselves with the registry using Register().
type Constructor func(cfg *Config) (Store, error)

// registry maps driver names to their constructors
var (
	registry      = make(map[string]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a remote store driver.
// This is called from init() functions in driver packages (postgres, mongo).
//
// Example:
//
//	func init() {
//	    remote.Register("postgres", Open)
//	}
func Register(name string, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("remote: Register constructor is nil for driver %s", name))
	}

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("remote: Register called twice for driver %s", name))
	}

	registry[name] = constructor
}

// Open creates a Store using the driver named in cfg.Driver.
// Returns ErrUnknownDriver if no such driver is registered.
func Open(cfg *Config) (Store, error) {
	registryMutex.RLock()
	constructor := registry[cfg.Driver]
	registryMutex.RUnlock()

	if constructor == nil {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, cfg.Driver, Drivers())
	}
	return constructor(cfg)
}

// Drivers returns the names of all registered drivers, sorted.
// Useful for error messages and debugging.
func Drivers() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
