package jobtask_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/jobtask"
	"github.com/pkgforge/pkgforge/core/progress"
	"github.com/pkgforge/pkgforge/core/store"
)

type fakeArtifact struct{ name string }

func (a fakeArtifact) Name() string                { return a.name }
func (a fakeArtifact) InStore(storeID string) bool { return true }

// fakeOracle satisfies oracle.Oracle without needing a real catalog/stores.
type fakeOracle struct {
	artifacts []models.ArtifactPath
	err       error
}

func (o *fakeOracle) Find(ctx context.Context, job models.JobDefinition, release, staging store.Store, env []models.EnvResource) ([]models.ArtifactPath, error) {
	return o.artifacts, o.err
}

func newCollaborators(o *fakeOracle) jobtask.Collaborators {
	return jobtask.Collaborators{
		Oracle:     o,
		LogFactory: logger.NoOpLogFactory,
	}
}

func baseJob(deps ...models.JobID) models.JobDefinition {
	return models.JobDefinition{ID: models.NewJobID(), PackageRef: models.PackageRef{Name: "libfoo", Version: "1.0"}, Dependencies: deps}
}

func TestTask_ZeroDeps_Reused(t *testing.T) {
	job := baseJob()
	inbound := jobtask.NewFanIn(0)
	downstream := jobtask.NewFanIn(1)
	outSender := downstream.Sender()

	oracle := &fakeOracle{artifacts: []models.ArtifactPath{fakeArtifact{name: "libfoo-1.0.pkg"}}}
	task := jobtask.New(job, inbound, []*jobtask.Sender{outSender}, progress.NoOpReporter{}.NewTask(job.ID, "libfoo"), newCollaborators(oracle))

	err := task.Run(context.Background())
	require.NoError(t, err)

	msg, ok := <-downstream.Recv()
	require.True(t, ok)
	require.False(t, msg.IsErr())
	assert.Equal(t, "libfoo-1.0.pkg", msg.OK[job.ID][0].Name())
}

func TestTask_DependencyFailure_PropagatesToSoleDownstream(t *testing.T) {
	depID := models.NewJobID()
	job := baseJob(depID)

	inbound := jobtask.NewFanIn(1)
	upstreamSender := inbound.Sender()
	downstream := jobtask.NewFanIn(1)
	outSender := downstream.Sender()

	task := jobtask.New(job, inbound, []*jobtask.Sender{outSender}, progress.NoOpReporter{}.NewTask(job.ID, "libfoo"), newCollaborators(&fakeOracle{}))

	upstreamSender.Send(models.NewErrResult(depID, errors.New("build failed")))
	upstreamSender.Close()

	err := task.Run(context.Background())
	require.NoError(t, err)

	msg, ok := <-downstream.Recv()
	require.True(t, ok)
	assert.True(t, msg.IsErr())
	assert.Error(t, msg.Err[depID])
}

func TestTask_UnmetDependency_ReturnsFatalError(t *testing.T) {
	depID := models.NewJobID()
	job := baseJob(depID)

	// Inbound's sole sender closes without ever sending: depID never gets accounted for in
	// either received map, which must surface as an internal-invariant fatal error rather than
	// a silent hang.
	inbound := jobtask.NewFanIn(1)
	sender := inbound.Sender()
	sender.Close()

	downstream := jobtask.NewFanIn(1)
	task := jobtask.New(job, inbound, []*jobtask.Sender{downstream.Sender()}, progress.NoOpReporter{}.NewTask(job.ID, "libfoo"), newCollaborators(&fakeOracle{}))

	err := task.Run(context.Background())
	require.Error(t, err)
	assert.True(t, gerror.Is(err, gerror.CodeInternalInvariant))
}
