package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/config"
	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/store"
	"github.com/sells-group/contacts-cli/pkg/exa"
	"github.com/sells-group/contacts-cli/pkg/mixrank"
)

const (
	defaultChunkSize  = 5
	defaultChunkPause = 2 * time.Second
)

// enrichmentSource names the identity provider recorded on every summary
// blob and history row produced by this orchestrator.
const enrichmentSource = "mixrank"

// RunReport summarizes one orchestrator pass over the backlog.
type RunReport struct {
	Selected int `json:"selected"`
	Enriched int `json:"enriched"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Orchestrator drives enrichment cycles over the unenriched backlog.
type Orchestrator struct {
	store    store.Store
	identity mixrank.Client
	search   exa.Client
	tags     *TagGenerator
	cfg      config.EnrichConfig
}

// NewOrchestrator wires an Orchestrator from its collaborators.
func NewOrchestrator(st store.Store, identity mixrank.Client, search exa.Client, tags *TagGenerator, cfg config.EnrichConfig) *Orchestrator {
	return &Orchestrator{store: st, identity: identity, search: search, tags: tags, cfg: cfg}
}

// Run selects the unenriched backlog and enriches each record in turn.
// Records fail independently: one bad record never aborts the batch. The
// run lock excludes concurrent passes against the same store.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	log := zap.L()

	acquired, err := o.store.TryRunLock(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: acquire run lock")
	}
	if !acquired {
		return nil, eris.New("enrich: another enrichment run is in progress")
	}
	defer func() {
		if err := o.store.ReleaseRunLock(context.WithoutCancel(ctx)); err != nil {
			log.Warn("release run lock failed", zap.Error(err))
		}
	}()

	conns, err := o.store.ListUnenriched(ctx, o.cfg.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list unenriched")
	}

	report := &RunReport{Selected: len(conns)}
	log.Info("starting enrichment run", zap.Int("selected", report.Selected))

	chunkSize := o.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	pause := time.Duration(o.cfg.ChunkPauseSecs) * time.Second
	if o.cfg.ChunkPauseSecs <= 0 {
		pause = defaultChunkPause
	}

	for i := range conns {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		conn := &conns[i]
		enriched, err := o.enrichOne(ctx, conn)
		switch {
		case err != nil:
			report.Failed++
			log.Warn("enrichment failed",
				zap.String("connection_id", conn.ID),
				zap.String("name", conn.FullName),
				zap.Error(err))
		case enriched:
			report.Enriched++
		default:
			report.Skipped++
		}

		// Pause between chunks to stay inside provider rate limits.
		if (i+1)%chunkSize == 0 && i+1 < len(conns) {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}

	log.Info("enrichment run complete",
		zap.Int("enriched", report.Enriched),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// enrichOne runs a single record's cycle. The returned bool reports whether
// a new version was committed; (false, nil) means the provider had nothing
// and the record was skipped.
func (o *Orchestrator) enrichOne(ctx context.Context, conn *model.Connection) (bool, error) {
	log := zap.L().With(zap.String("connection_id", conn.ID))

	version, err := o.store.MaxEnrichmentVersion(ctx, conn.ID)
	if err != nil {
		return false, err
	}
	version++

	// Committed before the fetch so a crash leaves a visible stuck flag
	// instead of a silently half-done record.
	if err := o.store.SetEnriching(ctx, conn.ID, true); err != nil {
		return false, err
	}

	// Failure paths below return without resetting is_enriching: the
	// committed marker stays standing so stuck records are visible.
	raw, err := o.identity.PersonMatch(ctx, conn.FullName, conn.ProfileURL)
	if err != nil {
		return false, err
	}
	if raw.IsEmpty() {
		log.Info("identity provider returned no data, skipping")
		o.clearFlag(ctx, conn.ID)
		return false, nil
	}

	warns := Merge(conn, raw)
	for _, w := range warns {
		log.Warn("merge warning", zap.String("warning", w))
	}

	// Search context for tagging is best-effort.
	query := conn.FullName
	if conn.CurrentCompany != "" {
		query += " " + conn.CurrentCompany
	}
	results, err := o.search.Search(ctx, query)
	if err != nil {
		log.Warn("tag context search failed", zap.Error(err))
		results = nil
	}

	tags := o.tags.Generate(ctx, conn, results)

	conn.LatestEnrichment = &model.EnrichmentSummary{
		Version:   version,
		Source:    enrichmentSource,
		Timestamp: time.Now().UTC(),
		Digest:    digest(conn),
	}

	if err := o.store.SaveEnrichment(ctx, conn, &model.Enrichment{
		ConnectionID: conn.ID,
		Version:      version,
		Tags:         tags,
	}); err != nil {
		return false, err
	}

	log.Info("enriched", zap.Int("version", version), zap.Int("tags", len(tags)))
	return true, nil
}

// clearFlag is a best-effort reset on the skip path, where the record ends
// the cycle unchanged. The success path clears the flag inside the
// SaveEnrichment transaction; failure paths never clear it.
func (o *Orchestrator) clearFlag(ctx context.Context, id string) {
	if err := o.store.SetEnriching(context.WithoutCancel(ctx), id, false); err != nil {
		zap.L().Warn("clear enriching flag failed",
			zap.String("connection_id", id), zap.Error(err))
	}
}

func digest(c *model.Connection) model.EnrichmentDigest {
	return model.EnrichmentDigest{
		Headline:               c.Headline,
		CurrentCompany:         c.CurrentCompany,
		Location:               c.Location,
		SkillsCount:            len(c.Skills),
		EducationCount:         len(c.Education),
		PreviousCompaniesCount: len(c.PreviousCompanies),
	}
}
