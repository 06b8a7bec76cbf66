package models

import "fmt"

// JobDefinition is an immutable, frozen description of one unit of build work, constructed by
// the external DAG builder (spec.md section 3). Invariants, enforced by the DagBuilder/DAG
// producer rather than the core:
//   - IDs are unique within a DAG.
//   - Dependency IDs all resolve to members of the DAG.
//   - The dependency relation is acyclic.
//   - A job never lists itself as a dependency.
type JobDefinition struct {
	ID           JobID
	PackageRef   PackageRef
	Dependencies []JobID
	Resources    []Resource
}

func (j JobDefinition) String() string {
	return fmt.Sprintf("job %s (%s)", j.ID, j.PackageRef)
}

// DependsOn reports whether id appears in j's dependency list.
func (j JobDefinition) DependsOn(id JobID) bool {
	for _, dep := range j.Dependencies {
		if dep.Equal(id) {
			return true
		}
	}
	return false
}
