package models

import "google.golang.org/protobuf/types/known/structpb"

// ResourceKind discriminates the tagged union of values a JobDefinition's resource list
// may contain (spec.md section 3: "ordered list, each either Env(name, value) or other
// resource variants").
type ResourceKind string

const (
	ResourceKindEnv   ResourceKind = "env"
	ResourceKindOther ResourceKind = "other"
)

// Resource is one entry in a JobDefinition's resource list. Exactly one of Env/Other is set,
// selected by Kind.
type Resource struct {
	Kind  ResourceKind
	Env   *EnvResource
	Other *OtherResource
}

func NewEnvResource(name, value string) Resource {
	return Resource{Kind: ResourceKindEnv, Env: &EnvResource{Name: name, Value: value}}
}

// NewOtherResource wraps a resource kind the core does not interpret. The payload is carried
// as a structpb.Struct so that resource kinds introduced by future DagBuilder versions round-trip
// through the core without requiring a core change. The catalog does not persist resources.
func NewOtherResource(kind string, value *structpb.Struct) Resource {
	return Resource{Kind: ResourceKindOther, Other: &OtherResource{Kind: kind, Value: value}}
}

type EnvResource struct {
	Name  string
	Value string
}

type OtherResource struct {
	Kind  string
	Value *structpb.Struct
}

// Env returns the subset of resources that are environment variables, in order.
func Env(resources []Resource) []EnvResource {
	var out []EnvResource
	for _, r := range resources {
		if r.Kind == ResourceKindEnv && r.Env != nil {
			out = append(out, *r.Env)
		}
	}
	return out
}
