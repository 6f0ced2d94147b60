package llm

import "context"

// MockClient is a test double for Client with injectable behavior.
type MockClient struct {
	CompleteFunc func(ctx context.Context, system, user string) (string, error)
	ModelFunc    func() string

	CompleteCalls int
	LastSystem    string
	LastUser      string
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) Complete(ctx context.Context, system, user string) (string, error) {
	m.CompleteCalls++
	m.LastSystem = system
	m.LastUser = user
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, user)
	}
	return "SELECT 1", nil
}

func (m *MockClient) Model() string {
	if m.ModelFunc != nil {
		return m.ModelFunc()
	}
	return "mock-model"
}
