package oracle_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/catalog"
	"github.com/pkgforge/pkgforge/core/oracle"
	"github.com/pkgforge/pkgforge/core/store"
)

type fakeCatalog struct {
	candidates []catalog.CandidateArtifact
	err        error
}

func (f *fakeCatalog) FindArtifacts(ctx context.Context, pkg models.PackageRef, env []models.EnvResource, includeReleased bool) ([]catalog.CandidateArtifact, error) {
	return f.candidates, f.err
}
func (f *fakeCatalog) RecordJob(ctx context.Context, submitID models.SubmitID, job models.JobDefinition, fingerprint string, artifactNames []string) error {
	return nil
}
func (f *fakeCatalog) Fingerprint(job models.JobDefinition, deps []models.ArtifactPath) (string, error) {
	return "", nil
}
func (f *fakeCatalog) Close() error { return nil }

func TestFind_StagingPrecedence(t *testing.T) {
	release := store.NewLocalStore("release", t.TempDir())
	staging := store.NewLocalStore("staging", t.TempDir())
	ctx := context.Background()

	_, err := release.Put(ctx, "libfoo-1.0.tar.zst", strings.NewReader("release bytes"))
	require.NoError(t, err)
	_, err = staging.Put(ctx, "libfoo-1.0.tar.zst", strings.NewReader("staging bytes"))
	require.NoError(t, err)

	cat := &fakeCatalog{candidates: []catalog.CandidateArtifact{
		{Name: "libfoo-1.0.tar.zst", Metadata: catalog.ArtifactMetadata{Released: true}},
	}}
	o := oracle.New(cat)

	job := models.JobDefinition{PackageRef: models.PackageRef{Name: "libfoo", Version: "1.0"}}
	result, err := o.Find(ctx, job, release, staging, nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].InStore("staging"))
}

func TestFind_DedupKeepsFirstAfterSort(t *testing.T) {
	release := store.NewLocalStore("release", t.TempDir())
	staging := store.NewLocalStore("staging", t.TempDir())
	ctx := context.Background()
	_, err := release.Put(ctx, "dup", strings.NewReader("r"))
	require.NoError(t, err)

	cat := &fakeCatalog{candidates: []catalog.CandidateArtifact{
		{Name: "dup"},
		{Name: "dup"},
	}}
	o := oracle.New(cat)

	result, err := o.Find(ctx, models.JobDefinition{}, release, staging, nil)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestFind_NoCandidates_ShortCircuits(t *testing.T) {
	release := store.NewLocalStore("release", t.TempDir())
	cat := &fakeCatalog{}
	o := oracle.New(cat)
	result, err := o.Find(context.Background(), models.JobDefinition{}, release, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestFind_StaleCatalogRowDropped(t *testing.T) {
	release := store.NewLocalStore("release", t.TempDir())
	cat := &fakeCatalog{candidates: []catalog.CandidateArtifact{{Name: "ghost"}}}
	o := oracle.New(cat)
	result, err := o.Find(context.Background(), models.JobDefinition{}, release, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}
