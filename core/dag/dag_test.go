package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/dag"
)

func job(id models.JobID, deps ...models.JobID) models.JobDefinition {
	return models.JobDefinition{
		ID:           id,
		PackageRef:   models.PackageRef{Name: id.String(), Version: "1.0.0"},
		Dependencies: deps,
	}
}

func TestNew_LinearChain(t *testing.T) {
	a, b, c := models.NewJobID(), models.NewJobID(), models.NewJobID()
	d, err := dag.New([]models.JobDefinition{
		job(a),
		job(b, a),
		job(c, b),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	roots := d.Roots()
	require.Len(t, roots, 1)
	assert.True(t, roots[0].ID.Equal(c))

	deps := d.Dependents(a)
	require.Len(t, deps, 1)
	assert.True(t, deps[0].ID.Equal(b))
}

func TestNew_SelfLoopRejected(t *testing.T) {
	a := models.NewJobID()
	_, err := dag.New([]models.JobDefinition{job(a, a)})
	require.Error(t, err)
}

func TestNew_UnknownDependencyRejected(t *testing.T) {
	a, missing := models.NewJobID(), models.NewJobID()
	_, err := dag.New([]models.JobDefinition{job(a, missing)})
	require.Error(t, err)
}

func TestNew_CycleRejected(t *testing.T) {
	a, b := models.NewJobID(), models.NewJobID()
	_, err := dag.New([]models.JobDefinition{
		job(a, b),
		job(b, a),
	})
	require.Error(t, err)
}

func TestNew_DuplicateIDRejected(t *testing.T) {
	a := models.NewJobID()
	_, err := dag.New([]models.JobDefinition{job(a), job(a)})
	require.Error(t, err)
}

func TestNew_Diamond(t *testing.T) {
	a, b, c, d := models.NewJobID(), models.NewJobID(), models.NewJobID(), models.NewJobID()
	g, err := dag.New([]models.JobDefinition{
		job(a),
		job(b, a),
		job(c, a),
		job(d, b, c),
	})
	require.NoError(t, err)

	roots := g.Roots()
	require.Len(t, roots, 1)
	assert.True(t, roots[0].ID.Equal(d))

	depsOfA := g.Dependents(a)
	assert.Len(t, depsOfA, 2)
}
