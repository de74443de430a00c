package enrich

import (
	"context"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/pkg/anthropic"
	"github.com/sells-group/contacts-cli/pkg/exa"
)

// mockIdentity implements mixrank.Client for testing. Profiles are keyed by
// connection name; absent names yield an empty bag.
type mockIdentity struct {
	profiles map[string]model.RawProfile
	err      error
	failName string
	calls    int
}

func (m *mockIdentity) PersonMatch(_ context.Context, name, _ string) (model.RawProfile, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.failName != "" && name == m.failName {
		return nil, context.DeadlineExceeded
	}
	return m.profiles[name], nil
}

// mockSearch implements exa.Client for testing.
type mockSearch struct {
	results []exa.Result
	err     error
	queries []string
}

func (m *mockSearch) Search(_ context.Context, query string, _ ...exa.SearchOption) ([]exa.Result, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockLLM implements anthropic.Client for testing.
type mockLLM struct {
	response string
	err      error
	calls    int
}

func (m *mockLLM) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.response}},
	}, nil
}
