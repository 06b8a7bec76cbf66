package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/catalog"
)

func newTestCatalog(t *testing.T) *catalog.SQLCatalog {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "catalog.db")
	c, err := catalog.NewSQLCatalog(catalog.DriverSQLite3, dsn, logger.NoOpLogFactory)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLCatalog_RecordAndFind(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	submit := models.NewSubmitID()
	job := models.JobDefinition{ID: models.NewJobID(), PackageRef: models.PackageRef{Name: "libfoo", Version: "1.0"}}

	err := c.RecordJob(ctx, submit, job, "fp-1", []string{"libfoo-1.0.tar.zst"})
	require.NoError(t, err)

	candidates, err := c.FindArtifacts(ctx, job.PackageRef, nil, true)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "libfoo-1.0.tar.zst", candidates[0].Name)
	assert.Equal(t, "fp-1", candidates[0].Metadata.Fingerprint)
}

func TestSQLCatalog_FindArtifacts_ExcludesReleasedWhenAsked(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	job := models.JobDefinition{ID: models.NewJobID(), PackageRef: models.PackageRef{Name: "libfoo", Version: "1.0"}}

	require.NoError(t, c.RecordJob(ctx, models.NewSubmitID(), job, "fp-1", []string{"a"}))

	candidates, err := c.FindArtifacts(ctx, job.PackageRef, nil, false)
	require.NoError(t, err)
	assert.Len(t, candidates, 1) // RecordJob always writes released=false rows
}

func TestSQLCatalog_Fingerprint_StableForSameInputs(t *testing.T) {
	c := newTestCatalog(t)
	job := models.JobDefinition{
		ID:         models.NewJobID(),
		PackageRef: models.PackageRef{Name: "libfoo", Version: "1.0"},
		Resources:  []models.Resource{models.NewEnvResource("CC", "gcc")},
	}

	fp1, err := c.Fingerprint(job, nil)
	require.NoError(t, err)
	fp2, err := c.Fingerprint(job, nil)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}
