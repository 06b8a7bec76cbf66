// Package dag provides the immutable, acyclic collection of JobDefinitions that the
// orchestrator consumes. Construction (resolution / constraint satisfaction) is an external
// DAG builder's concern; this package only holds the frozen result and validates its shape.
package dag

import (
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/models"
)

// JobDag is an immutable, acyclic collection of JobDefinitions, iterable in any order.
type JobDag interface {
	// Jobs returns every JobDefinition in the DAG, in no specified order.
	Jobs() []models.JobDefinition
	// Get looks up a single JobDefinition by id.
	Get(id models.JobID) (models.JobDefinition, bool)
	// Dependents returns every job that lists id among its dependencies.
	Dependents(id models.JobID) []models.JobDefinition
	// Len reports how many jobs the DAG holds.
	Len() int
	// Roots returns the jobs with no dependents. The orchestrator requires exactly one.
	Roots() []models.JobDefinition
}

// StaticJobDag is a JobDag built once from a fixed slice of JobDefinitions and never mutated
// afterward, in the style of buildbeaver's dto.DAG (server/dto/dag.go) but without that
// package's general-purpose graph-walking machinery: the core only ever needs membership,
// lookup-by-id, and dependents-of, which a pair of maps serves more directly than a full
// graph library.
type StaticJobDag struct {
	jobs       []models.JobDefinition
	byID       map[models.JobID]models.JobDefinition
	dependents map[models.JobID][]models.JobID
}

// New constructs a StaticJobDag and validates the invariants spec.md section 3 assigns to the
// DAG builder: unique ids, dependency ids that all resolve to members, a job never listing
// itself, and an acyclic dependency relation. Id and membership failures are returned as one
// hashicorp/go-multierror error collecting a gerror.CodeWiring error per problem found, and a
// cycle as a single gerror.CodeWiring error, rather than panicking, since a malformed DAG is an expected input-side failure mode, not a
// core bug.
func New(jobs []models.JobDefinition) (*StaticJobDag, error) {
	d := &StaticJobDag{
		jobs:       jobs,
		byID:       make(map[models.JobID]models.JobDefinition, len(jobs)),
		dependents: make(map[models.JobID][]models.JobID, len(jobs)),
	}

	var errs *multierror.Error

	for _, j := range jobs {
		if _, dup := d.byID[j.ID]; dup {
			errs = multierror.Append(errs, gerror.Newf(gerror.CodeWiring, "duplicate job id %s (%s)", j.ID, j.PackageRef))
			continue
		}
		d.byID[j.ID] = j
	}

	for _, j := range jobs {
		for _, depID := range j.Dependencies {
			if depID.Equal(j.ID) {
				errs = multierror.Append(errs, gerror.Newf(gerror.CodeWiring, "job %s depends on itself", j.PackageRef))
				continue
			}
			if _, ok := d.byID[depID]; !ok {
				errs = multierror.Append(errs, gerror.Newf(gerror.CodeWiring, "job %s depends on unknown job %s", j.PackageRef, depID))
				continue
			}
			d.dependents[depID] = append(d.dependents[depID], j.ID)
		}
	}

	if errs.ErrorOrNil() != nil {
		return nil, errs.ErrorOrNil()
	}

	if err := detectCycle(d); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *StaticJobDag) Jobs() []models.JobDefinition {
	out := make([]models.JobDefinition, len(d.jobs))
	copy(out, d.jobs)
	return out
}

func (d *StaticJobDag) Get(id models.JobID) (models.JobDefinition, bool) {
	j, ok := d.byID[id]
	return j, ok
}

func (d *StaticJobDag) Dependents(id models.JobID) []models.JobDefinition {
	ids := d.dependents[id]
	out := make([]models.JobDefinition, 0, len(ids))
	for _, depID := range ids {
		out = append(out, d.byID[depID])
	}
	return out
}

func (d *StaticJobDag) Len() int { return len(d.jobs) }

// Roots returns the jobs with no dependents, i.e. the sinks of the DAG. The orchestrator
// requires this set to have exactly one member.
func (d *StaticJobDag) Roots() []models.JobDefinition {
	var roots []models.JobDefinition
	for _, j := range d.jobs {
		if len(d.dependents[j.ID]) == 0 {
			roots = append(roots, j)
		}
	}
	sort.Slice(roots, func(i, k int) bool { return roots[i].ID.String() < roots[k].ID.String() })
	return roots
}

const (
	white = iota
	gray
	black
)

// detectCycle runs an iterative-by-recursion three-color DFS over the dependency relation.
// Self-loops are already rejected in New, so any cycle found here spans two or more jobs.
func detectCycle(d *StaticJobDag) error {
	color := make(map[models.JobID]int, len(d.jobs))
	var visit func(id models.JobID, path []models.JobID) error
	visit = func(id models.JobID, path []models.JobID) error {
		color[id] = gray
		path = append(path, id)
		j := d.byID[id]
		for _, depID := range j.Dependencies {
			switch color[depID] {
			case gray:
				return gerror.Newf(gerror.CodeWiring, "dependency cycle detected involving job %s", d.byID[depID].PackageRef)
			case white:
				if err := visit(depID, path); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	for _, j := range d.jobs {
		if color[j.ID] == white {
			if err := visit(j.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
