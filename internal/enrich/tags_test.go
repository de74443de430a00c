package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/pkg/exa"
)

func TestTagGenerator_Normalizes(t *testing.T) {
	llm := &mockLLM{response: ` Golang, "Cloud Computing" , postgres,, GOLANG, fintech
saas`}
	g := NewTagGenerator(llm, "test-model")

	tags := g.Generate(context.Background(), &model.Connection{FullName: "Sam"}, nil)
	assert.Equal(t, []string{"golang", "cloud computing", "postgres", "fintech", "saas"}, tags)
}

func TestTagGenerator_LLMFailureIsEmptySet(t *testing.T) {
	llm := &mockLLM{err: assert.AnError}
	g := NewTagGenerator(llm, "test-model")

	tags := g.Generate(context.Background(), &model.Connection{FullName: "Sam"}, nil)
	assert.NotNil(t, tags)
	assert.Empty(t, tags, "tag outage never blocks an enrichment cycle")
}

func TestTagGenerator_EmptyResponseIsEmptySet(t *testing.T) {
	llm := &mockLLM{response: "   "}
	g := NewTagGenerator(llm, "test-model")

	tags := g.Generate(context.Background(), &model.Connection{FullName: "Sam"}, nil)
	assert.Empty(t, tags)
}

func TestBuildTagInput_IncludesAttributesAndSnippets(t *testing.T) {
	t.Parallel()

	conn := &model.Connection{
		FullName:          "Sam Okafor",
		Headline:          "Staff Engineer",
		CurrentCompany:    "Acme",
		Skills:            []string{"Go"},
		PreviousCompanies: []string{"Beta Corp"},
		Education:         []model.Education{{School: "CU Boulder", Degree: "BS"}},
	}
	results := []exa.Result{{Title: "Sam Okafor - Acme", Text: "engineering blog posts"}}

	input := buildTagInput(conn, results)
	assert.Contains(t, input, "Sam Okafor")
	assert.Contains(t, input, "Staff Engineer")
	assert.Contains(t, input, "Acme")
	assert.Contains(t, input, "Beta Corp")
	assert.Contains(t, input, "CU Boulder")
	assert.Contains(t, input, "engineering blog posts")
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "go, sql", []string{"go", "sql"}},
		{"dedupes case-insensitively", "Go, go, GO", []string{"go"}},
		{"strips quotes", `"fintech", 'saas'`, []string{"fintech", "saas"}},
		{"drops empties", "a, , ,b", []string{"a", "b"}},
		{"empty input", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitTags(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
