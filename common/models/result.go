package models

// JobResult is the tagged union a JobTask sends to its dependents: either an accumulation of
// successful outputs keyed by the job that produced them, or an accumulation of failures keyed
// by the job that failed (spec.md section 3). A zero-value JobResult carries neither and is not
// meaningful on its own; use NewOkResult/NewErrResult/Merge to build one up.
type JobResult struct {
	OK  map[JobID][]ArtifactPath
	Err map[JobID]error
}

func NewOkResult(id JobID, artifacts []ArtifactPath) JobResult {
	return JobResult{OK: map[JobID][]ArtifactPath{id: artifacts}}
}

func NewErrResult(id JobID, err error) JobResult {
	return JobResult{Err: map[JobID]error{id: err}}
}

// IsErr reports whether any failure has been recorded.
func (r JobResult) IsErr() bool { return len(r.Err) > 0 }

// Merge folds other's entries into r, returning the combined result. Err entries take
// precedence: a job id present in both OK and Err ends up only in Err, since a job that
// ultimately failed should not also be reported as a usable dependency output.
func (r JobResult) Merge(other JobResult) JobResult {
	out := JobResult{
		OK:  make(map[JobID][]ArtifactPath, len(r.OK)+len(other.OK)),
		Err: make(map[JobID]error, len(r.Err)+len(other.Err)),
	}
	for id, paths := range r.OK {
		out.OK[id] = paths
	}
	for id, paths := range other.OK {
		out.OK[id] = paths
	}
	for id, err := range r.Err {
		out.Err[id] = err
	}
	for id, err := range other.Err {
		out.Err[id] = err
	}
	for id := range out.Err {
		delete(out.OK, id)
	}
	return out
}
