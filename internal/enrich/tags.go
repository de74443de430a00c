package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/pkg/anthropic"
	"github.com/sells-group/contacts-cli/pkg/exa"
)

// tagPrompt instructs the model to emit a flat keyword list. The
// post-processing in Generate does not trust the model to follow it.
const tagPrompt = `You are generating search keywords for a professional contact database. Based on the person's profile attributes and the raw web snippets provided, produce 50-100 short keywords (1-2 words each) covering their professional background, skills, industries, interests, and achievements.

Respond with ONLY the keywords as a single comma-separated list, no other text.`

// maxSnippetCharsPerResult truncates each search snippet in the tag prompt.
const maxSnippetCharsPerResult = 800

// TagGenerator derives a keyword set for a merged record.
type TagGenerator struct {
	llm   anthropic.Client
	model string
}

// NewTagGenerator creates a TagGenerator using the given LLM model.
func NewTagGenerator(llm anthropic.Client, model string) *TagGenerator {
	return &TagGenerator{llm: llm, model: model}
}

// Generate produces the tag set for conn. Tags are best-effort: any LLM
// failure or empty response yields an empty set, never an error, so a tag
// outage cannot block an enrichment cycle.
func (g *TagGenerator) Generate(ctx context.Context, conn *model.Connection, results []exa.Result) []string {
	log := zap.L().With(zap.String("connection_id", conn.ID))

	resp, err := g.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 1024,
		System:    tagPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: buildTagInput(conn, results)}},
	})
	if err != nil {
		log.Warn("tag generation failed", zap.Error(err))
		return []string{}
	}

	tags := splitTags(resp.Text())
	if len(tags) == 0 {
		log.Warn("tag generation returned no usable keywords")
	}
	return tags
}

func buildTagInput(conn *model.Connection, results []exa.Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Name: %s\n", conn.FullName)
	if conn.Headline != "" {
		fmt.Fprintf(&sb, "Headline: %s\n", conn.Headline)
	}
	if conn.CurrentCompany != "" {
		fmt.Fprintf(&sb, "Current company: %s\n", conn.CurrentCompany)
	}
	if conn.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", conn.Location)
	}
	if len(conn.Skills) > 0 {
		fmt.Fprintf(&sb, "Skills: %s\n", strings.Join(conn.Skills, ", "))
	}
	if len(conn.PreviousCompanies) > 0 {
		fmt.Fprintf(&sb, "Previous companies: %s\n", strings.Join(conn.PreviousCompanies, ", "))
	}
	for _, edu := range conn.Education {
		fmt.Fprintf(&sb, "Education: %s %s\n", edu.Degree, edu.School)
	}
	for _, cert := range conn.Certifications {
		fmt.Fprintf(&sb, "Certification: %s (%s)\n", cert.Title, cert.Issuer)
	}

	if len(results) > 0 {
		sb.WriteString("\nWeb snippets:\n")
		for _, res := range results {
			text := res.Text
			if len(text) > maxSnippetCharsPerResult {
				text = text[:maxSnippetCharsPerResult]
			}
			fmt.Fprintf(&sb, "- %s: %s\n", res.Title, text)
		}
	}

	return sb.String()
}

// splitTags normalizes raw model output into a deduplicated keyword set:
// split on commas and newlines, trim space and surrounding quotes,
// lowercase, drop empties.
func splitTags(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	seen := make(map[string]bool, len(fields))
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		tag := strings.ToLower(strings.TrimSpace(f))
		tag = strings.Trim(tag, `"'`)
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
