package models

// ArtifactPath is an opaque handle to a build output. It can report its bare artifact name
// and whether it currently resides in a given store; two ArtifactPaths compare equal when
// their names match (spec.md section 3).
type ArtifactPath interface {
	Name() string
	InStore(storeID string) bool
}

// ArtifactPathsEqual implements the "equal artifacts compare equal by name" invariant.
func ArtifactPathsEqual(a, b ArtifactPath) bool {
	return a.Name() == b.Name()
}
