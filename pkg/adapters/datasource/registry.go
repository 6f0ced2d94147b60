package datasource

import (
	"sync"
)

// AdapterInfo describes a registered adapter for discovery endpoints.
type AdapterInfo struct {
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// AdapterRegistration pairs adapter info with its factory. The config
// map carries decrypted connection parameters (host, port, database,
// username, password or file_path depending on kind).
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory func(config map[string]any) (Adapter, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Kind] = reg
}

// RegisteredAdapters returns info for all registered adapters.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// GetFactory returns the factory for a data source kind, or nil if the
// kind is not registered.
func GetFactory(kind string) func(config map[string]any) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[kind]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks whether an adapter kind is available.
func IsRegistered(kind string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}
