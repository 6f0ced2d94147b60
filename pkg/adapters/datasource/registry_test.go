package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
)

func TestRegisterAndLookup(t *testing.T) {
	Register(AdapterRegistration{
		Info: AdapterInfo{Kind: "fake", DisplayName: "Fake", Description: "test only"},
		Factory: func(config map[string]any) (Adapter, error) {
			return &MockAdapter{}, nil
		},
	})

	assert.True(t, IsRegistered("fake"))
	assert.NotNil(t, GetFactory("fake"))
	assert.Nil(t, GetFactory("csv"))

	var kinds []string
	for _, info := range RegisteredAdapters() {
		kinds = append(kinds, info.Kind)
	}
	assert.Contains(t, kinds, "fake")
}

func TestFactoryUnsupportedKind(t *testing.T) {
	factory := NewAdapterFactory()

	_, err := factory.NewAdapter("csv", map[string]any{"file_path": "/tmp/data.csv"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedKind)
}
