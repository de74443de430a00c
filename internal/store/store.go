package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contacts-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("not found")

// Store defines the persistence interface for the connection pipeline.
type Store interface {
	// Connections
	CreateConnection(ctx context.Context, conn *model.Connection) (*model.Connection, error)
	GetConnection(ctx context.Context, id string) (*model.Connection, error)
	ListUnenriched(ctx context.Context, limit int) ([]model.Connection, error)
	CountUnenriched(ctx context.Context) (int, error)
	SetEnriching(ctx context.Context, id string, enriching bool) error

	// Enrichment history
	MaxEnrichmentVersion(ctx context.Context, connectionID string) (int, error)
	SaveEnrichment(ctx context.Context, conn *model.Connection, enr *model.Enrichment) error
	ListEnrichments(ctx context.Context, connectionID string) ([]model.Enrichment, error)

	// Bulk import
	ImportConnections(ctx context.Context, conns []model.Connection) (int64, error)

	// Run lock
	TryRunLock(ctx context.Context) (bool, error)
	ReleaseRunLock(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// connRow holds the JSON-encoded structural columns of a connection. A nil
// entry stores SQL NULL; for industries that is how the never-checked state
// survives a round trip (empty slice encodes to '[]', not NULL).
type connRow struct {
	Industries        []byte
	Skills            []byte
	Education         []byte
	Certifications    []byte
	PreviousCompanies []byte
	Volunteering      []byte
	Publications      []byte
	Awards            []byte
	LatestEnrichment  []byte
}

func encodeConnection(c *model.Connection) (*connRow, error) {
	var r connRow
	var err error

	if c.Industries != nil {
		if r.Industries, err = json.Marshal(c.Industries); err != nil {
			return nil, eris.Wrap(err, "store: marshal industries")
		}
	}
	if c.Skills != nil {
		if r.Skills, err = json.Marshal(c.Skills); err != nil {
			return nil, eris.Wrap(err, "store: marshal skills")
		}
	}
	if c.Education != nil {
		if r.Education, err = json.Marshal(c.Education); err != nil {
			return nil, eris.Wrap(err, "store: marshal education")
		}
	}
	if c.Certifications != nil {
		if r.Certifications, err = json.Marshal(c.Certifications); err != nil {
			return nil, eris.Wrap(err, "store: marshal certifications")
		}
	}
	if c.PreviousCompanies != nil {
		if r.PreviousCompanies, err = json.Marshal(c.PreviousCompanies); err != nil {
			return nil, eris.Wrap(err, "store: marshal previous companies")
		}
	}
	if c.Volunteering != nil {
		if r.Volunteering, err = json.Marshal(c.Volunteering); err != nil {
			return nil, eris.Wrap(err, "store: marshal volunteering")
		}
	}
	if c.Publications != nil {
		if r.Publications, err = json.Marshal(c.Publications); err != nil {
			return nil, eris.Wrap(err, "store: marshal publications")
		}
	}
	if c.Awards != nil {
		if r.Awards, err = json.Marshal(c.Awards); err != nil {
			return nil, eris.Wrap(err, "store: marshal awards")
		}
	}
	if c.LatestEnrichment != nil {
		if r.LatestEnrichment, err = json.Marshal(c.LatestEnrichment); err != nil {
			return nil, eris.Wrap(err, "store: marshal latest enrichment")
		}
	}
	return &r, nil
}

// decodeInto unmarshals raw into dst unless the column was NULL.
func decodeInto(dst any, raw []byte, what string) error {
	if len(raw) == 0 {
		return nil
	}
	return eris.Wrapf(json.Unmarshal(raw, dst), "store: unmarshal %s", what)
}

func decodeConnection(c *model.Connection, r *connRow) error {
	if err := decodeInto(&c.Industries, r.Industries, "industries"); err != nil {
		return err
	}
	if err := decodeInto(&c.Skills, r.Skills, "skills"); err != nil {
		return err
	}
	if err := decodeInto(&c.Education, r.Education, "education"); err != nil {
		return err
	}
	if err := decodeInto(&c.Certifications, r.Certifications, "certifications"); err != nil {
		return err
	}
	if err := decodeInto(&c.PreviousCompanies, r.PreviousCompanies, "previous companies"); err != nil {
		return err
	}
	if err := decodeInto(&c.Volunteering, r.Volunteering, "volunteering"); err != nil {
		return err
	}
	if err := decodeInto(&c.Publications, r.Publications, "publications"); err != nil {
		return err
	}
	if err := decodeInto(&c.Awards, r.Awards, "awards"); err != nil {
		return err
	}
	if len(r.LatestEnrichment) > 0 {
		c.LatestEnrichment = &model.EnrichmentSummary{}
		if err := decodeInto(c.LatestEnrichment, r.LatestEnrichment, "latest enrichment"); err != nil {
			return err
		}
	}
	return nil
}
