package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contacts-cli/internal/db"
	"github.com/sells-group/contacts-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const connectionColumns = `id, full_name, profile_url, headline, current_company, location, profile_image_url,
	date_of_birth, industries, skills, education, certifications, previous_companies,
	volunteering, publications, awards, is_enriching, latest_enrichment, created_at, updated_at`

const (
	qGetConnection = `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	qSetEnriching = `UPDATE connections SET is_enriching = $1, updated_at = $2 WHERE id = $3`

	qMaxVersion = `SELECT COALESCE(MAX(version), 0) FROM enrichments WHERE connection_id = $1`

	qInsertEnrichment = `INSERT INTO enrichments (id, connection_id, version, tags, created_at) VALUES ($1, $2, $3, $4, $5)`

	// Unenriched means the record has never completed a merge cycle: no
	// latest_enrichment blob at all, or a blob without a version key.
	unenrichedPredicate = `(latest_enrichment IS NULL OR NOT latest_enrichment ? 'version')`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_connection":    qGetConnection,
	"set_enriching":     qSetEnriching,
	"max_version":       qMaxVersion,
	"insert_enrichment": qInsertEnrichment,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems that need
// direct query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS connections (
	id                 TEXT PRIMARY KEY,
	full_name          TEXT NOT NULL,
	profile_url        TEXT NOT NULL UNIQUE,
	headline           TEXT NOT NULL DEFAULT '',
	current_company    TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	profile_image_url  TEXT NOT NULL DEFAULT '',
	date_of_birth      DATE,
	industries         JSONB,
	skills             JSONB,
	education          JSONB,
	certifications     JSONB,
	previous_companies JSONB,
	volunteering       JSONB,
	publications       JSONB,
	awards             JSONB,
	is_enriching       BOOLEAN NOT NULL DEFAULT false,
	latest_enrichment  JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_connections_is_enriching ON connections(is_enriching);
CREATE INDEX IF NOT EXISTS idx_connections_created_at ON connections(created_at);

CREATE TABLE IF NOT EXISTS enrichments (
	id            TEXT PRIMARY KEY,
	connection_id TEXT NOT NULL REFERENCES connections(id),
	version       INTEGER NOT NULL,
	tags          JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (connection_id, version)
);

CREATE INDEX IF NOT EXISTS idx_enrichments_connection_id ON enrichments(connection_id);

CREATE TABLE IF NOT EXISTS run_locks (
	name        TEXT PRIMARY KEY,
	acquired_at TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateConnection(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	row, err := encodeConnection(conn)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO connections (`+connectionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		conn.ID, conn.FullName, conn.ProfileURL, conn.Headline, conn.CurrentCompany,
		conn.Location, conn.ProfileImageURL, conn.DateOfBirth,
		row.Industries, row.Skills, row.Education, row.Certifications, row.PreviousCompanies,
		row.Volunteering, row.Publications, row.Awards,
		conn.IsEnriching, row.LatestEnrichment, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert connection")
	}
	return conn, nil
}

func (s *PostgresStore) GetConnection(ctx context.Context, id string) (*model.Connection, error) {
	c, err := scanPgConnection(s.pool.QueryRow(ctx, qGetConnection, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "connection %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get connection %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListUnenriched(ctx context.Context, limit int) ([]model.Connection, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE `+unenrichedPredicate+`
		 ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unenriched")
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		c, err := scanPgConnection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan connection")
		}
		conns = append(conns, *c)
	}
	return conns, eris.Wrap(rows.Err(), "postgres: list unenriched iterate")
}

func (s *PostgresStore) CountUnenriched(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM connections WHERE `+unenrichedPredicate,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count unenriched")
}

func (s *PostgresStore) SetEnriching(ctx context.Context, id string, enriching bool) error {
	tag, err := s.pool.Exec(ctx, qSetEnriching, enriching, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set enriching %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "connection %s", id)
	}
	return nil
}

func (s *PostgresStore) MaxEnrichmentVersion(ctx context.Context, connectionID string) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx, qMaxVersion, connectionID).Scan(&version)
	return version, eris.Wrapf(err, "postgres: max enrichment version %s", connectionID)
}

// SaveEnrichment commits the merged record, its history row, and the flag
// clear as one transaction. A crash mid-cycle therefore leaves either the
// full new version or none of it.
func (s *PostgresStore) SaveEnrichment(ctx context.Context, conn *model.Connection, enr *model.Enrichment) error {
	row, err := encodeConnection(conn)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(enr.Tags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tags")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE connections SET
			headline = $1, current_company = $2, location = $3, profile_image_url = $4,
			date_of_birth = $5, industries = $6, skills = $7, education = $8,
			certifications = $9, previous_companies = $10, volunteering = $11,
			publications = $12, awards = $13, latest_enrichment = $14,
			is_enriching = false, updated_at = $15
		 WHERE id = $16`,
		conn.Headline, conn.CurrentCompany, conn.Location, conn.ProfileImageURL,
		conn.DateOfBirth, row.Industries, row.Skills, row.Education,
		row.Certifications, row.PreviousCompanies, row.Volunteering,
		row.Publications, row.Awards, row.LatestEnrichment, now, conn.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update connection %s", conn.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "connection %s", conn.ID)
	}

	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}
	if enr.CreatedAt.IsZero() {
		enr.CreatedAt = now
	}
	if _, err := tx.Exec(ctx, qInsertEnrichment,
		enr.ID, enr.ConnectionID, enr.Version, tagsJSON, enr.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert enrichment v%d for %s", enr.Version, enr.ConnectionID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func (s *PostgresStore) ListEnrichments(ctx context.Context, connectionID string) ([]model.Enrichment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, connection_id, version, tags, created_at FROM enrichments
		 WHERE connection_id = $1 ORDER BY version ASC`,
		connectionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichments")
	}
	defer rows.Close()

	var enrichments []model.Enrichment
	for rows.Next() {
		var e model.Enrichment
		var tagsJSON []byte
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.Version, &tagsJSON, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment")
		}
		if err := decodeInto(&e.Tags, tagsJSON, "tags"); err != nil {
			return nil, err
		}
		enrichments = append(enrichments, e)
	}
	return enrichments, eris.Wrap(rows.Err(), "postgres: list enrichments iterate")
}

// ImportConnections bulk-loads records via a temp-table upsert keyed on
// profile_url. Existing records keep their enrichment data; only identity
// fields are refreshed.
func (s *PostgresStore) ImportConnections(ctx context.Context, conns []model.Connection) (int64, error) {
	if len(conns) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(conns))
	for i := range conns {
		c := &conns[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		rows = append(rows, []any{c.ID, c.FullName, c.ProfileURL, c.Location, now, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "connections",
		Columns:      []string{"id", "full_name", "profile_url", "location", "created_at", "updated_at"},
		ConflictKeys: []string{"profile_url"},
		UpdateCols:   []string{"full_name", "location", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import connections")
	}
	return n, nil
}

// TryRunLock claims the enrichment run lock row. Advisory locks are
// session-scoped and every pool query may land on a different session, so
// the lock is a row instead.
func (s *PostgresStore) TryRunLock(ctx context.Context) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO run_locks (name, acquired_at) VALUES ('enrich', $1)
		 ON CONFLICT (name) DO NOTHING`,
		time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: try run lock")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ReleaseRunLock(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM run_locks WHERE name = 'enrich'`)
	return eris.Wrap(err, "postgres: release run lock")
}

// pgScannable covers pgx.Row and pgx.Rows.
type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgConnection(row pgScannable) (*model.Connection, error) {
	var c model.Connection
	var r connRow

	err := row.Scan(
		&c.ID, &c.FullName, &c.ProfileURL, &c.Headline, &c.CurrentCompany,
		&c.Location, &c.ProfileImageURL, &c.DateOfBirth,
		&r.Industries, &r.Skills, &r.Education, &r.Certifications, &r.PreviousCompanies,
		&r.Volunteering, &r.Publications, &r.Awards,
		&c.IsEnriching, &r.LatestEnrichment, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeConnection(&c, &r); err != nil {
		return nil, err
	}
	return &c, nil
}
