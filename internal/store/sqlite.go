package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contacts-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS connections (
	id                 TEXT PRIMARY KEY,
	full_name          TEXT NOT NULL,
	profile_url        TEXT NOT NULL UNIQUE,
	headline           TEXT NOT NULL DEFAULT '',
	current_company    TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	profile_image_url  TEXT NOT NULL DEFAULT '',
	date_of_birth      DATETIME,
	industries         TEXT,
	skills             TEXT,
	education          TEXT,
	certifications     TEXT,
	previous_companies TEXT,
	volunteering       TEXT,
	publications       TEXT,
	awards             TEXT,
	is_enriching       INTEGER NOT NULL DEFAULT 0,
	latest_enrichment  TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_connections_is_enriching ON connections(is_enriching);
CREATE INDEX IF NOT EXISTS idx_connections_created_at ON connections(created_at);

CREATE TABLE IF NOT EXISTS enrichments (
	id            TEXT PRIMARY KEY,
	connection_id TEXT NOT NULL REFERENCES connections(id),
	version       INTEGER NOT NULL,
	tags          TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (connection_id, version)
);

CREATE INDEX IF NOT EXISTS idx_enrichments_connection_id ON enrichments(connection_id);

CREATE TABLE IF NOT EXISTS run_locks (
	name        TEXT PRIMARY KEY,
	acquired_at DATETIME NOT NULL
);
`

const sqliteUnenrichedPredicate = `(latest_enrichment IS NULL OR json_extract(latest_enrichment, '$.version') IS NULL)`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateConnection(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO connections (id, full_name, profile_url, headline, current_company, location, profile_image_url,
			date_of_birth, industries, skills, education, certifications, previous_companies,
			volunteering, publications, awards, is_enriching, latest_enrichment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID, conn.FullName, conn.ProfileURL, conn.Headline, conn.CurrentCompany,
		conn.Location, conn.ProfileImageURL, nullTime(conn.DateOfBirth),
		nullJSON(row.Industries), nullJSON(row.Skills), nullJSON(row.Education),
		nullJSON(row.Certifications), nullJSON(row.PreviousCompanies),
		nullJSON(row.Volunteering), nullJSON(row.Publications), nullJSON(row.Awards),
		conn.IsEnriching, nullJSON(row.LatestEnrichment), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert connection")
	}
	return conn, nil
}

func (s *SQLiteStore) GetConnection(ctx context.Context, id string) (*model.Connection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, profile_url, headline, current_company, location, profile_image_url,
			date_of_birth, industries, skills, education, certifications, previous_companies,
			volunteering, publications, awards, is_enriching, latest_enrichment, created_at, updated_at
		 FROM connections WHERE id = ?`,
		id,
	)

	c, err := scanSQLiteConnection(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "connection %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get connection %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListUnenriched(ctx context.Context, limit int) ([]model.Connection, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, full_name, profile_url, headline, current_company, location, profile_image_url,
			date_of_birth, industries, skills, education, certifications, previous_companies,
			volunteering, publications, awards, is_enriching, latest_enrichment, created_at, updated_at
		 FROM connections WHERE `+sqliteUnenrichedPredicate+`
		 ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unenriched")
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		c, err := scanSQLiteConnection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan connection")
		}
		conns = append(conns, *c)
	}
	return conns, eris.Wrap(rows.Err(), "sqlite: list unenriched iterate")
}

func (s *SQLiteStore) CountUnenriched(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connections WHERE `+sqliteUnenrichedPredicate,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count unenriched")
}

func (s *SQLiteStore) SetEnriching(ctx context.Context, id string, enriching bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE connections SET is_enriching = ?, updated_at = ? WHERE id = ?`,
		enriching, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set enriching %s", id)
	}
	return checkRowsAffected(res, "connection", id)
}

func (s *SQLiteStore) MaxEnrichmentVersion(ctx context.Context, connectionID string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM enrichments WHERE connection_id = ?`,
		connectionID,
	).Scan(&version)
	return version, eris.Wrapf(err, "sqlite: max enrichment version %s", connectionID)
}

// SaveEnrichment commits the merged record, its history row, and the flag
// clear as one transaction.
func (s *SQLiteStore) SaveEnrichment(ctx context.Context, conn *model.Connection, enr *model.Enrichment) error {
	row, err := encodeConnection(conn)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(enr.Tags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE connections SET
			headline = ?, current_company = ?, location = ?, profile_image_url = ?,
			date_of_birth = ?, industries = ?, skills = ?, education = ?,
			certifications = ?, previous_companies = ?, volunteering = ?,
			publications = ?, awards = ?, latest_enrichment = ?,
			is_enriching = 0, updated_at = ?
		 WHERE id = ?`,
		conn.Headline, conn.CurrentCompany, conn.Location, conn.ProfileImageURL,
		nullTime(conn.DateOfBirth), nullJSON(row.Industries), nullJSON(row.Skills),
		nullJSON(row.Education), nullJSON(row.Certifications), nullJSON(row.PreviousCompanies),
		nullJSON(row.Volunteering), nullJSON(row.Publications), nullJSON(row.Awards),
		nullJSON(row.LatestEnrichment), now, conn.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update connection %s", conn.ID)
	}
	if err := checkRowsAffected(res, "connection", conn.ID); err != nil {
		return err
	}

	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}
	if enr.CreatedAt.IsZero() {
		enr.CreatedAt = now
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO enrichments (id, connection_id, version, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		enr.ID, enr.ConnectionID, enr.Version, string(tagsJSON), enr.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert enrichment v%d for %s", enr.Version, enr.ConnectionID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) ListEnrichments(ctx context.Context, connectionID string) ([]model.Enrichment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, connection_id, version, tags, created_at FROM enrichments
		 WHERE connection_id = ? ORDER BY version ASC`,
		connectionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichments")
	}
	defer rows.Close()

	var enrichments []model.Enrichment
	for rows.Next() {
		var e model.Enrichment
		var tagsJSON string
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.Version, &tagsJSON, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enrichment")
		}
		if err := decodeInto(&e.Tags, []byte(tagsJSON), "tags"); err != nil {
			return nil, err
		}
		enrichments = append(enrichments, e)
	}
	return enrichments, eris.Wrap(rows.Err(), "sqlite: list enrichments iterate")
}

// ImportConnections inserts or refreshes records keyed on profile_url inside
// one transaction. Existing records keep their enrichment data.
func (s *SQLiteStore) ImportConnections(ctx context.Context, conns []model.Connection) (int64, error) {
	if len(conns) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var total int64
	for i := range conns {
		c := &conns[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO connections (id, full_name, profile_url, location, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(profile_url) DO UPDATE SET full_name = excluded.full_name,
				location = excluded.location, updated_at = excluded.updated_at`,
			c.ID, c.FullName, c.ProfileURL, c.Location, now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import connection %s", c.ProfileURL)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return total, nil
}

func (s *SQLiteStore) TryRunLock(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO run_locks (name, acquired_at) VALUES ('enrich', ?)
		 ON CONFLICT(name) DO NOTHING`,
		time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: try run lock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReleaseRunLock(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM run_locks WHERE name = 'enrich'`)
	return eris.Wrap(err, "sqlite: release run lock")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

// nullJSON converts an encoded column to a driver value, preserving NULL.
func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteConnection(row scannable) (*model.Connection, error) {
	var c model.Connection
	var r connRow
	var dob sql.NullTime
	var industries, skills, education, certifications, previousCompanies sql.NullString
	var volunteering, publications, awards, latestEnrichment sql.NullString

	err := row.Scan(
		&c.ID, &c.FullName, &c.ProfileURL, &c.Headline, &c.CurrentCompany,
		&c.Location, &c.ProfileImageURL, &dob,
		&industries, &skills, &education, &certifications, &previousCompanies,
		&volunteering, &publications, &awards,
		&c.IsEnriching, &latestEnrichment, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dob.Valid {
		t := dob.Time
		c.DateOfBirth = &t
	}
	r.Industries = nullBytes(industries)
	r.Skills = nullBytes(skills)
	r.Education = nullBytes(education)
	r.Certifications = nullBytes(certifications)
	r.PreviousCompanies = nullBytes(previousCompanies)
	r.Volunteering = nullBytes(volunteering)
	r.Publications = nullBytes(publications)
	r.Awards = nullBytes(awards)
	r.LatestEnrichment = nullBytes(latestEnrichment)

	if err := decodeConnection(&c, &r); err != nil {
		return nil, err
	}
	return &c, nil
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
