// Package catalog implements the persistent catalog the reuse oracle queries for candidate
// artifacts, and the fingerprint-based job bookkeeping it records alongside them (spec.md
// section 6; grounded on buildbeaver's job fingerprint/indirection logic in
// server/services/queue/queue_service.go).
package catalog

import (
	"context"

	"github.com/pkgforge/pkgforge/common/models"
)

// ArtifactMetadata is the opaque-to-the-oracle bag of bookkeeping data the catalog associates
// with a stored artifact: which submit and job produced it, its fingerprint, and whether it has
// been released. SQLCatalog.FindArtifacts fills in only Fingerprint and Released.
type ArtifactMetadata struct {
	SubmitID    models.SubmitID
	JobID       models.JobID
	Fingerprint string
	Released    bool
}

// CandidateArtifact is one row returned by FindArtifacts: an artifact name (not yet resolved to
// a live ArtifactPath in any particular store - that is the oracle's job) plus its metadata.
type CandidateArtifact struct {
	Name     string
	Metadata ArtifactMetadata
}

// Catalog is the contract the core consumes (spec.md section 6).
type Catalog interface {
	// FindArtifacts returns candidates for the package; env carries the effective environment,
	// which SQLCatalog does not filter on (see SQLCatalog.FindArtifacts). includeReleased
	// controls whether rows recorded against the release store are returned at all; the oracle
	// always wants them (it decides precedence itself), but administrative tooling may want to
	// exclude them.
	FindArtifacts(ctx context.Context, pkg models.PackageRef, env []models.EnvResource, includeReleased bool) ([]CandidateArtifact, error)

	// RecordJob persists that submitID's execution of job produced the given fingerprint and
	// artifact names, for future FindArtifacts calls to surface. Not part of the oracle's own
	// read path; the orchestrator, JobTask and endpoint drivers do not call it, so a run adds
	// no rows.
	RecordJob(ctx context.Context, submitID models.SubmitID, job models.JobDefinition, fingerprint string, artifactNames []string) error

	// Fingerprint computes the reuse key for a job: its package reference, dependency artifact
	// names (already resolved, so the fingerprint reflects actual inputs, not just declared
	// dependency ids), and resources.
	Fingerprint(job models.JobDefinition, dependencyArtifacts []models.ArtifactPath) (string, error)

	Close() error
}
