package resolve

import (
	"context"

	"github.com/sells-group/contacts-cli/pkg/anthropic"
	"github.com/sells-group/contacts-cli/pkg/exa"
)

// mockSearch implements exa.Client for testing.
type mockSearch struct {
	results []exa.Result
	err     error
	queries []string
	calls   int
}

func (m *mockSearch) Search(_ context.Context, query string, _ ...exa.SearchOption) ([]exa.Result, error) {
	m.calls++
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockGeo implements ipapi.Client for testing.
type mockGeo struct {
	location string
	calls    int
}

func (m *mockGeo) Locate(_ context.Context, _ string) string {
	m.calls++
	return m.location
}

// mockLLM implements anthropic.Client for testing.
type mockLLM struct {
	response string
	err      error
	calls    int
	requests []anthropic.MessageRequest
}

func (m *mockLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls++
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.response}},
	}, nil
}
