package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contacts-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedConnection(t *testing.T, st *SQLiteStore, name, url string) *model.Connection {
	t.Helper()
	conn, err := st.CreateConnection(context.Background(), &model.Connection{
		FullName:   name,
		ProfileURL: url,
	})
	require.NoError(t, err)
	return conn
}

// --- Connections ---

func TestSQLite_Connection_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	in := &model.Connection{
		FullName:        "Jordan Reyes",
		ProfileURL:      "https://linkedin.com/in/jordanreyes",
		Headline:        "Staff Engineer",
		CurrentCompany:  "Acme",
		Location:        "Denver, Colorado, United States",
		ProfileImageURL: "https://img.example.com/jordan.jpg",
		DateOfBirth:     &dob,
		Industries:      []string{"Software", "Fintech"},
		Skills:          []string{"Go", "Postgres"},
		Education: []model.Education{
			{School: "CU Boulder", Degree: "BS", StartDate: "2008", EndDate: "2012"},
		},
		Certifications:    []model.Certification{{Title: "CKA", Issuer: "CNCF", Date: "2021"}},
		PreviousCompanies: []string{"Beta Corp"},
	}

	created, err := st.CreateConnection(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := st.GetConnection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", got.FullName)
	assert.Equal(t, "Staff Engineer", got.Headline)
	assert.Equal(t, []string{"Software", "Fintech"}, got.Industries)
	assert.Equal(t, []string{"Go", "Postgres"}, got.Skills)
	require.Len(t, got.Education, 1)
	assert.Equal(t, "CU Boulder", got.Education[0].School)
	require.NotNil(t, got.DateOfBirth)
	assert.Equal(t, dob.Format("2006-01-02"), got.DateOfBirth.Format("2006-01-02"))
	assert.False(t, got.IsEnriching)
	assert.Nil(t, got.LatestEnrichment)
}

func TestSQLite_Connection_IndustriesNilVsEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	unchecked := seedConnection(t, st, "A", "https://linkedin.com/in/a")

	checked, err := st.CreateConnection(ctx, &model.Connection{
		FullName:   "B",
		ProfileURL: "https://linkedin.com/in/b",
		Industries: []string{},
	})
	require.NoError(t, err)

	got, err := st.GetConnection(ctx, unchecked.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Industries)

	got, err = st.GetConnection(ctx, checked.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Industries)
	assert.Empty(t, got.Industries)
}

func TestSQLite_GetConnection_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetConnection(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListUnenriched_Selection(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	fresh := seedConnection(t, st, "Fresh", "https://linkedin.com/in/fresh")
	enriched := seedConnection(t, st, "Done", "https://linkedin.com/in/done")

	// Mark one record as having completed a merge cycle.
	enriched.LatestEnrichment = &model.EnrichmentSummary{
		Version:   1,
		Source:    "mixrank",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, st.SaveEnrichment(ctx, enriched, &model.Enrichment{
		ConnectionID: enriched.ID,
		Version:      1,
		Tags:         []string{"golang"},
	}))

	conns, err := st.ListUnenriched(ctx, 0)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, fresh.ID, conns[0].ID)

	count, err := st.CountUnenriched(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLite_ListUnenriched_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)

	seedConnection(t, st, "A", "https://linkedin.com/in/la")
	seedConnection(t, st, "B", "https://linkedin.com/in/lb")
	seedConnection(t, st, "C", "https://linkedin.com/in/lc")

	conns, err := st.ListUnenriched(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, conns, 2)
}

func TestSQLite_SetEnriching(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	conn := seedConnection(t, st, "Flag", "https://linkedin.com/in/flag")

	require.NoError(t, st.SetEnriching(ctx, conn.ID, true))
	got, err := st.GetConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnriching)

	require.NoError(t, st.SetEnriching(ctx, conn.ID, false))
	got, err = st.GetConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnriching)
}

func TestSQLite_SetEnriching_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SetEnriching(context.Background(), "missing", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Enrichment history ---

func TestSQLite_SaveEnrichment_Atomic(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	conn := seedConnection(t, st, "Casey", "https://linkedin.com/in/casey")
	require.NoError(t, st.SetEnriching(ctx, conn.ID, true))

	conn.Headline = "VP Engineering"
	conn.CurrentCompany = "Acme"
	conn.Skills = []string{"Leadership"}
	conn.LatestEnrichment = &model.EnrichmentSummary{
		Version:   1,
		Source:    "mixrank",
		Timestamp: time.Now().UTC(),
		Digest: model.EnrichmentDigest{
			Headline:       "VP Engineering",
			CurrentCompany: "Acme",
			SkillsCount:    1,
		},
	}

	err := st.SaveEnrichment(ctx, conn, &model.Enrichment{
		ConnectionID: conn.ID,
		Version:      1,
		Tags:         []string{"engineering-leadership"},
	})
	require.NoError(t, err)

	got, err := st.GetConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "VP Engineering", got.Headline)
	assert.False(t, got.IsEnriching, "flag clears in the same transaction")
	require.NotNil(t, got.LatestEnrichment)
	assert.Equal(t, 1, got.LatestEnrichment.Version)
	assert.Equal(t, "mixrank", got.LatestEnrichment.Source)

	history, err := st.ListEnrichments(ctx, conn.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, []string{"engineering-leadership"}, history[0].Tags)

	version, err := st.MaxEnrichmentVersion(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestSQLite_SaveEnrichment_DuplicateVersion(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	conn := seedConnection(t, st, "Dup", "https://linkedin.com/in/dup")

	save := func() error {
		return st.SaveEnrichment(ctx, conn, &model.Enrichment{
			ConnectionID: conn.ID,
			Version:      1,
			Tags:         []string{},
		})
	}
	require.NoError(t, save())
	require.Error(t, save(), "version is unique per connection")

	// The failed save must not leave a second history row.
	history, err := st.ListEnrichments(ctx, conn.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSQLite_MaxEnrichmentVersion_NoHistory(t *testing.T) {
	st := newTestSQLiteStore(t)

	conn := seedConnection(t, st, "New", "https://linkedin.com/in/new")

	version, err := st.MaxEnrichmentVersion(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestSQLite_ListEnrichments_Ordered(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	conn := seedConnection(t, st, "Hist", "https://linkedin.com/in/hist")

	for _, v := range []int{1, 2, 3} {
		require.NoError(t, st.SaveEnrichment(ctx, conn, &model.Enrichment{
			ConnectionID: conn.ID,
			Version:      v,
			Tags:         []string{"t"},
		}))
	}

	history, err := st.ListEnrichments(ctx, conn.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, e := range history {
		assert.Equal(t, i+1, e.Version)
	}
}

// --- Import ---

func TestSQLite_ImportConnections_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.ImportConnections(ctx, []model.Connection{
		{FullName: "A", ProfileURL: "https://linkedin.com/in/ia"},
		{FullName: "B", ProfileURL: "https://linkedin.com/in/ib"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Re-import updates identity fields without duplicating rows.
	_, err = st.ImportConnections(ctx, []model.Connection{
		{FullName: "A Renamed", ProfileURL: "https://linkedin.com/in/ia", Location: "Austin"},
	})
	require.NoError(t, err)

	count, err := st.CountUnenriched(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLite_ImportConnections_PreservesEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	conn := seedConnection(t, st, "Keep", "https://linkedin.com/in/keep")
	conn.Headline = "CTO"
	conn.LatestEnrichment = &model.EnrichmentSummary{Version: 1, Source: "mixrank", Timestamp: time.Now().UTC()}
	require.NoError(t, st.SaveEnrichment(ctx, conn, &model.Enrichment{
		ConnectionID: conn.ID, Version: 1, Tags: []string{},
	}))

	_, err := st.ImportConnections(ctx, []model.Connection{
		{FullName: "Keep Renamed", ProfileURL: "https://linkedin.com/in/keep"},
	})
	require.NoError(t, err)

	got, err := st.GetConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep Renamed", got.FullName)
	assert.Equal(t, "CTO", got.Headline)
	require.NotNil(t, got.LatestEnrichment)
	assert.Equal(t, 1, got.LatestEnrichment.Version)
}

func TestSQLite_ImportConnections_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.ImportConnections(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

// --- Run lock ---

func TestSQLite_RunLock(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	acquired, err := st.TryRunLock(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	again, err := st.TryRunLock(ctx)
	require.NoError(t, err)
	assert.False(t, again, "second acquisition fails while held")

	require.NoError(t, st.ReleaseRunLock(ctx))

	acquired, err = st.TryRunLock(ctx)
	require.NoError(t, err)
	assert.True(t, acquired, "lock is reacquirable after release")
}
