package models

import (
	"fmt"

	"github.com/google/uuid"
)

// resourceID is a kind-prefixed globally unique identifier, in the style of
// buildbeaver's common/models.ResourceID.
type resourceID struct {
	kind string
	uuid uuid.UUID
}

func newResourceID(kind string) resourceID {
	return resourceID{kind: kind, uuid: uuid.New()}
}

func (r resourceID) String() string {
	if r.uuid == uuid.Nil {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.kind, r.uuid.String())
}

func (r resourceID) Valid() bool { return r.uuid != uuid.Nil }

func (r resourceID) Equal(other resourceID) bool {
	return r.kind == other.kind && r.uuid == other.uuid
}

// JobID uniquely identifies a JobDefinition/JobTask within a DAG.
type JobID struct{ resourceID }

func NewJobID() JobID { return JobID{newResourceID("job")} }

func (id JobID) String() string { return id.resourceID.String() }

// Equal reports whether id and other name the same job.
func (id JobID) Equal(other JobID) bool { return id.resourceID.Equal(other.resourceID) }

// SubmitID correlates all jobs belonging to one orchestration invocation, for catalog purposes.
// The core never interprets it beyond passing it through to the catalog and source cache.
type SubmitID struct{ resourceID }

func NewSubmitID() SubmitID { return SubmitID{newResourceID("submit")} }

func (id SubmitID) String() string { return id.resourceID.String() }

// EndpointID identifies a single remote build endpoint.
type EndpointID struct{ resourceID }

func NewEndpointID() EndpointID { return EndpointID{newResourceID("endpoint")} }

func (id EndpointID) String() string { return id.resourceID.String() }

// PackageRef is an opaque handle naming a package plus version, as produced by the
// (out-of-scope) package repository.
type PackageRef struct {
	Name    string
	Version string
}

func (p PackageRef) String() string { return fmt.Sprintf("%s@%s", p.Name, p.Version) }
