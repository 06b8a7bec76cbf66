package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/dag"
	"github.com/pkgforge/pkgforge/core/jobtask"
	"github.com/pkgforge/pkgforge/core/orchestrator"
	"github.com/pkgforge/pkgforge/core/progress"
	"github.com/pkgforge/pkgforge/core/store"
)

type fakeArtifact struct{ name string }

func (a fakeArtifact) Name() string                { return a.name }
func (a fakeArtifact) InStore(storeID string) bool { return true }

// alwaysReuseOracle returns one synthetic artifact per job, named after its package, so every
// task short-circuits straight to REUSE without touching a scheduler.
type alwaysReuseOracle struct{}

func (alwaysReuseOracle) Find(ctx context.Context, job models.JobDefinition, release, staging store.Store, env []models.EnvResource) ([]models.ArtifactPath, error) {
	return []models.ArtifactPath{fakeArtifact{name: job.PackageRef.Name}}, nil
}

// failOneOracle fails every job whose name matches failName; reuses everything else.
type failOneOracle struct{ failName string }

func (o failOneOracle) Find(ctx context.Context, job models.JobDefinition, release, staging store.Store, env []models.EnvResource) ([]models.ArtifactPath, error) {
	if job.PackageRef.Name == o.failName {
		return nil, errors.New("simulated oracle failure")
	}
	return []models.ArtifactPath{fakeArtifact{name: job.PackageRef.Name}}, nil
}

func newJob(name string, deps ...models.JobID) models.JobDefinition {
	return models.JobDefinition{ID: models.NewJobID(), PackageRef: models.PackageRef{Name: name, Version: "1.0"}, Dependencies: deps}
}

func TestOrchestrator_LinearChain_AllReused(t *testing.T) {
	a := newJob("a")
	b := newJob("b", a.ID)
	c := newJob("c", b.ID)

	d, err := dag.New([]models.JobDefinition{a, b, c})
	require.NoError(t, err)

	o := orchestrator.New(progress.NoOpReporter{}, jobtask.Collaborators{
		Oracle:     alwaysReuseOracle{},
		LogFactory: logger.NoOpLogFactory,
	})

	artifacts, errs, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Nil(t, errs)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "c", artifacts[0].Name())
}

func TestOrchestrator_Diamond_AllReused(t *testing.T) {
	a := newJob("a")
	b := newJob("b", a.ID)
	c := newJob("c", a.ID)
	root := newJob("root", b.ID, c.ID)

	d, err := dag.New([]models.JobDefinition{a, b, c, root})
	require.NoError(t, err)

	o := orchestrator.New(progress.NoOpReporter{}, jobtask.Collaborators{
		Oracle:     alwaysReuseOracle{},
		LogFactory: logger.NoOpLogFactory,
	})

	artifacts, errs, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Len(t, artifacts, 1)
}

func TestOrchestrator_LeafFailure_PropagatesToRootAsError(t *testing.T) {
	a := newJob("a")
	b := newJob("b", a.ID)

	d, err := dag.New([]models.JobDefinition{a, b})
	require.NoError(t, err)

	o := orchestrator.New(progress.NoOpReporter{}, jobtask.Collaborators{
		Oracle:     failOneOracle{failName: "a"},
		LogFactory: logger.NoOpLogFactory,
	})

	artifacts, errs, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Nil(t, artifacts)
	require.Len(t, errs, 1)
	assert.Error(t, errs[a.ID])
}

func TestOrchestrator_RejectsMultiRootDag(t *testing.T) {
	a := newJob("a")
	b := newJob("b")

	d, err := dag.New([]models.JobDefinition{a, b})
	require.NoError(t, err)

	o := orchestrator.New(progress.NoOpReporter{}, jobtask.Collaborators{
		Oracle:     alwaysReuseOracle{},
		LogFactory: logger.NoOpLogFactory,
	})

	_, _, err = o.Run(context.Background(), d)
	assert.Error(t, err)
}
