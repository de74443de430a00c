package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contacts-cli/internal/config"
	"github.com/sells-group/contacts-cli/pkg/exa"
)

func testConfig() config.ResolveConfig {
	return config.ResolveConfig{
		MaxCandidates:  5,
		SearchResults:  10,
		IncludeDomains: []string{"linkedin.com", "crunchbase.com", "angel.co", "twitter.com"},
	}
}

func threeResults() []exa.Result {
	return []exa.Result{
		{Title: "Sam Okafor - Engineer", URL: "https://linkedin.com/in/samokafor", Text: "Software engineer in Chicago"},
		{Title: "Sam Okafor", URL: "https://twitter.com/samokafor", Text: "random tweets"},
		{Title: "S. Okafor", URL: "https://crunchbase.com/person/s-okafor", Text: "page not found"},
	}
}

func TestResolve_NameRequired(t *testing.T) {
	search := &mockSearch{}
	geo := &mockGeo{}
	llm := &mockLLM{}
	r := New(search, geo, llm, testConfig(), "test-model")

	_, err := r.Resolve(context.Background(), "  ", "", "1.2.3.4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Zero(t, search.calls, "validation happens before any external call")
	assert.Zero(t, geo.calls)
	assert.Zero(t, llm.calls)
}

func TestResolve_DirectWithProfileURL(t *testing.T) {
	search := &mockSearch{}
	geo := &mockGeo{}
	llm := &mockLLM{}
	r := New(search, geo, llm, testConfig(), "test-model")

	res, err := r.Resolve(context.Background(), "Sam Okafor", "https://linkedin.com/in/samokafor", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Direct)
	assert.Empty(t, res.Candidates)
	assert.Zero(t, search.calls, "direct path skips search")
	assert.Zero(t, geo.calls)
	assert.Zero(t, llm.calls)
}

func TestResolve_SearchFailure(t *testing.T) {
	search := &mockSearch{err: assert.AnError}
	r := New(search, &mockGeo{}, &mockLLM{}, testConfig(), "test-model")

	_, err := r.Resolve(context.Background(), "Sam Okafor", "", "1.2.3.4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search")
}

func TestResolve_NoSearchResults(t *testing.T) {
	search := &mockSearch{results: nil}
	llm := &mockLLM{}
	r := New(search, &mockGeo{}, llm, testConfig(), "test-model")

	_, err := r.Resolve(context.Background(), "Sam Okafor", "", "1.2.3.4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no search results")
	assert.Zero(t, llm.calls)
}

func TestResolve_DropsEmptySummaries(t *testing.T) {
	// Three search results, but the model finds usable signal in only one.
	search := &mockSearch{results: threeResults()}
	llm := &mockLLM{response: `[
		{"summary": "Software engineer at Acme in Chicago", "url": "https://linkedin.com/in/samokafor", "score": 8},
		{"summary": "", "url": "https://twitter.com/samokafor", "score": 3},
		{"summary": "  ", "url": "https://crunchbase.com/person/s-okafor", "score": 1}
	]`}
	r := New(search, &mockGeo{location: "Chicago, Illinois, United States"}, llm, testConfig(), "test-model")

	res, err := r.Resolve(context.Background(), "Sam Okafor", "", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.RequireProfileURL)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "https://linkedin.com/in/samokafor", res.Candidates[0].URL)
	assert.Equal(t, "Chicago, Illinois, United States", res.Location)
}

func TestResolve_ScoresSortedAndClamped(t *testing.T) {
	search := &mockSearch{results: threeResults()}
	llm := &mockLLM{response: `[
		{"summary": "A", "url": "https://a.example", "score": 4},
		{"summary": "B", "url": "https://b.example", "score": 99},
		{"summary": "C", "url": "https://c.example", "score": -2}
	]`}
	r := New(search, &mockGeo{}, llm, testConfig(), "test-model")

	res, err := r.Resolve(context.Background(), "Sam Okafor", "", "")
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "https://b.example", res.Candidates[0].URL)
	assert.Equal(t, 10.0, res.Candidates[0].Score)
	assert.Equal(t, "https://c.example", res.Candidates[2].URL)
	assert.Equal(t, 0.0, res.Candidates[2].Score)
}

func TestResolve_AllEmptySummariesRequiresURL(t *testing.T) {
	search := &mockSearch{results: threeResults()}
	llm := &mockLLM{response: `[{"summary": "", "url": "https://a.example", "score": 5}]`}
	r := New(search, &mockGeo{location: "Berlin, Germany"}, llm, testConfig(), "test-model")

	res, err := r.Resolve(context.Background(), "Sam Okafor", "", "")
	require.NoError(t, err)
	assert.True(t, res.RequireProfileURL)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, "Berlin, Germany", res.Location)
}

func TestResolve_OverCapRequiresURL(t *testing.T) {
	search := &mockSearch{results: threeResults()}
	llm := &mockLLM{response: `[
		{"summary": "A", "url": "u1", "score": 1},
		{"summary": "B", "url": "u2", "score": 2},
		{"summary": "C", "url": "u3", "score": 3}
	]`}
	cfg := testConfig()
	cfg.MaxCandidates = 2
	r := New(search, &mockGeo{}, llm, cfg, "test-model")

	res, err := r.Resolve(context.Background(), "Sam Okafor", "", "")
	require.NoError(t, err)
	assert.True(t, res.RequireProfileURL, "too many distinct people remain ambiguous")
	assert.Empty(t, res.Candidates)
}

func TestResolve_MalformedScoringResponse(t *testing.T) {
	search := &mockSearch{results: threeResults()}
	llm := &mockLLM{response: "I could not find anyone matching that name."}
	r := New(search, &mockGeo{}, llm, testConfig(), "test-model")

	_, err := r.Resolve(context.Background(), "Sam Okafor", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON")
}

func TestResolve_FencedScoringResponse(t *testing.T) {
	search := &mockSearch{results: threeResults()}
	llm := &mockLLM{response: "```json\n[{\"summary\": \"A\", \"url\": \"u1\", \"score\": 7}]\n```"}
	r := New(search, &mockGeo{}, llm, testConfig(), "test-model")

	res, err := r.Resolve(context.Background(), "Sam Okafor", "", "")
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 7.0, res.Candidates[0].Score)
}

func TestResolve_FoldsDiacriticsInQuery(t *testing.T) {
	search := &mockSearch{results: threeResults()}
	llm := &mockLLM{response: `[{"summary": "A", "url": "u1", "score": 5}]`}
	r := New(search, &mockGeo{}, llm, testConfig(), "test-model")

	_, err := r.Resolve(context.Background(), "José Muñoz", "", "")
	require.NoError(t, err)
	require.Len(t, search.queries, 1)
	assert.Equal(t, "Jose Munoz", search.queries[0])
}

func TestFoldName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"José", "Jose"},
		{"Zoë Müller", "Zoe Muller"},
		{"plain name", "plain name"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, foldName(tt.in))
		})
	}
}
