package llm

import "aria/internal/domain"

// MockLLM returns canned responses for tests. When Responses is exhausted
// the last entry repeats; an Err, if set, is returned on every call.
type MockLLM struct {
	Responses []string
	Err       error

	Calls [][]domain.Turn
}

func (m *MockLLM) Chat(messages []domain.Turn) (string, error) {
	m.Calls = append(m.Calls, messages)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := len(m.Calls) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

func (m *MockLLM) ModelName() string {
	return "mock"
}
