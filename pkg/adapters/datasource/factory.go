package datasource

import (
	"fmt"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
)

// AdapterFactory creates adapters from the registry.
type AdapterFactory interface {
	// NewAdapter creates an adapter for the given data source kind.
	NewAdapter(kind string, config map[string]any) (Adapter, error)

	// ListKinds returns info for all registered adapter kinds.
	ListKinds() []AdapterInfo
}

type registryFactory struct{}

// NewAdapterFactory returns a factory backed by the global registry.
func NewAdapterFactory() AdapterFactory {
	return &registryFactory{}
}

func (f *registryFactory) NewAdapter(kind string, config map[string]any) (Adapter, error) {
	factory := GetFactory(kind)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, kind)
	}
	return factory(config)
}

func (f *registryFactory) ListKinds() []AdapterInfo {
	return RegisteredAdapters()
}

var _ AdapterFactory = (*registryFactory)(nil)
