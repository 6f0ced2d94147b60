package datasource

import (
	"context"
	"time"

	"github.com/lumina-bi/lumina-engine/pkg/models"
)

// MockAdapter is a test double for Adapter with injectable behavior
// and call counters.
type MockAdapter struct {
	TestConnectionFunc func(ctx context.Context) (bool, string, *float64)
	GetSchemaFunc      func(ctx context.Context) (*models.Schema, error)
	ExecuteQueryFunc   func(ctx context.Context, sqlQuery string, timeout time.Duration) (*QueryRows, error)
	CloseFunc          func() error

	TestConnectionCalls int
	GetSchemaCalls      int
	ExecuteQueryCalls   int
	CloseCalls          int
	LastSQL             string
}

var _ Adapter = (*MockAdapter)(nil)

func (m *MockAdapter) TestConnection(ctx context.Context) (bool, string, *float64) {
	m.TestConnectionCalls++
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx)
	}
	latency := 1.0
	return true, "connection successful", &latency
}

func (m *MockAdapter) GetSchema(ctx context.Context) (*models.Schema, error) {
	m.GetSchemaCalls++
	if m.GetSchemaFunc != nil {
		return m.GetSchemaFunc(ctx)
	}
	return &models.Schema{Tables: map[string]models.TableSchema{}}, nil
}

func (m *MockAdapter) ExecuteQuery(ctx context.Context, sqlQuery string, timeout time.Duration) (*QueryRows, error) {
	m.ExecuteQueryCalls++
	m.LastSQL = sqlQuery
	if m.ExecuteQueryFunc != nil {
		return m.ExecuteQueryFunc(ctx, sqlQuery, timeout)
	}
	return &QueryRows{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (m *MockAdapter) Close() error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockAdapterFactory is a test double for AdapterFactory.
type MockAdapterFactory struct {
	NewAdapterFunc func(kind string, config map[string]any) (Adapter, error)

	NewAdapterCalls int
	LastKind        string
}

var _ AdapterFactory = (*MockAdapterFactory)(nil)

func (m *MockAdapterFactory) NewAdapter(kind string, config map[string]any) (Adapter, error) {
	m.NewAdapterCalls++
	m.LastKind = kind
	if m.NewAdapterFunc != nil {
		return m.NewAdapterFunc(kind, config)
	}
	return &MockAdapter{}, nil
}

func (m *MockAdapterFactory) ListKinds() []AdapterInfo {
	return RegisteredAdapters()
}
