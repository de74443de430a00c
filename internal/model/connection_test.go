package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnection_Enriched(t *testing.T) {
	t.Parallel()

	var c Connection
	assert.False(t, c.Enriched(), "no summary blob")

	c.LatestEnrichment = &EnrichmentSummary{}
	assert.False(t, c.Enriched(), "blob without a version still qualifies for the backlog")

	c.LatestEnrichment.Version = 1
	assert.True(t, c.Enriched())
}
