// Package resolve disambiguates a person name into ranked profile
// candidates using web search and LLM scoring.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contacts-cli/internal/config"
	"github.com/sells-group/contacts-cli/internal/jsonx"
	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/pkg/anthropic"
	"github.com/sells-group/contacts-cli/pkg/exa"
	"github.com/sells-group/contacts-cli/pkg/ipapi"
)

const (
	defaultMaxCandidates = 5

	// maxSnippetChars truncates each search result's text before it is
	// packed into the scoring prompt.
	maxSnippetChars = 1500
)

// scoringPrompt asks the model to dedupe and score all search results in one
// pass. Results describing the same person collapse into the entry the model
// is most confident about.
const scoringPrompt = `You are disambiguating web search results for a person lookup. Each result may describe the person being searched for, a different person with the same name, or no person at all.

For every distinct person found, produce one entry:
- "summary": 1-2 sentences about who this appears to be (empty string if the result carries no usable signal about a person)
- "url": the profile URL of the best result for that person
- "score": 0-10 confidence that this is the person being searched for, using the searcher's approximate location as a weak signal

Merge results describing the same person into a single entry, keeping the highest-confidence URL.

Respond with ONLY a valid JSON array of {"summary", "url", "score"} objects, no other text.`

// Resolution is the outcome of a disambiguation request. Exactly one of
// Direct, RequireProfileURL, or a non-empty Candidates list applies.
type Resolution struct {
	Direct            bool              `json:"direct,omitempty"`
	RequireProfileURL bool              `json:"require_profile_url,omitempty"`
	Candidates        []model.Candidate `json:"candidates,omitempty"`
	Location          string            `json:"location,omitempty"`
}

// Resolver turns a bare person name into ranked profile candidates.
type Resolver struct {
	search exa.Client
	geo    ipapi.Client
	llm    anthropic.Client
	cfg    config.ResolveConfig
	model  string
}

// New creates a Resolver. scoringModel names the LLM used for candidate
// scoring.
func New(search exa.Client, geo ipapi.Client, llm anthropic.Client, cfg config.ResolveConfig, scoringModel string) *Resolver {
	return &Resolver{search: search, geo: geo, llm: llm, cfg: cfg, model: scoringModel}
}

// Resolve disambiguates name. A non-empty profileURL short-circuits: the
// caller already knows which person they mean, so no external call is made.
// remoteIP feeds the geolocation hint used as a weak scoring signal.
func (r *Resolver) Resolve(ctx context.Context, name, profileURL, remoteIP string) (*Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.New("resolve: name is required")
	}

	if strings.TrimSpace(profileURL) != "" {
		return &Resolution{Direct: true}, nil
	}

	log := zap.L().With(zap.String("name", name))

	location := r.geo.Locate(ctx, remoteIP)

	maxCandidates := r.cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}

	results, err := r.search.Search(ctx, foldName(name),
		exa.WithNumResults(r.cfg.SearchResults),
		exa.WithIncludeDomains(r.cfg.IncludeDomains...),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: search for %q", name)
	}
	if len(results) == 0 {
		return nil, eris.Errorf("resolve: no search results for %q", name)
	}

	candidates, err := r.scoreCandidates(ctx, name, location, results)
	if err != nil {
		return nil, err
	}

	// Empty summaries carry no signal; drop them before ranking.
	ranked := candidates[:0]
	for _, c := range candidates {
		if strings.TrimSpace(c.Summary) == "" {
			continue
		}
		if c.Score < 0 {
			c.Score = 0
		}
		if c.Score > 10 {
			c.Score = 10
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if len(ranked) == 0 || len(ranked) > maxCandidates {
		log.Info("resolution ambiguous, requiring profile URL",
			zap.Int("candidates", len(ranked)))
		return &Resolution{RequireProfileURL: true, Location: location}, nil
	}

	return &Resolution{Candidates: ranked, Location: location}, nil
}

// scoreCandidates packs all result snippets into a single scoring request.
func (r *Resolver) scoreCandidates(ctx context.Context, name, location string, results []exa.Result) ([]model.Candidate, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Searched name: %s\n", name)
	if location != "" {
		fmt.Fprintf(&sb, "Searcher location: %s\n", location)
	}
	sb.WriteString("\nSearch results:\n")
	for i, res := range results {
		text := res.Text
		if len(text) > maxSnippetChars {
			text = text[:maxSnippetChars]
		}
		fmt.Fprintf(&sb, "\n[%d] %s\nURL: %s\n%s\n", i+1, res.Title, res.URL, text)
		if len(res.Highlights) > 0 {
			fmt.Fprintf(&sb, "Highlights: %s\n", strings.Join(res.Highlights, " | "))
		}
	}

	resp, err := r.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: 2048,
		System:    scoringPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "resolve: score candidates")
	}

	raw := jsonx.Extract(resp.Text())
	if raw == "" {
		return nil, eris.New("resolve: no JSON in scoring response")
	}

	var candidates []model.Candidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, eris.Wrap(err, "resolve: parse scoring response")
	}
	return candidates, nil
}

// foldName strips diacritics so the search query matches the ASCII spellings
// identity sites index under.
func foldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		return name
	}
	return folded
}
