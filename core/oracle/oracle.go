// Package oracle implements the ArtifactReuseOracle (spec.md section 4.2): given a job
// definition, the release and staging stores, and the effective environment, it returns a
// ranked list of already-existing artifacts that satisfy the job, preferring staging over
// release. It never writes.
package oracle

import (
	"context"
	"sort"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/catalog"
	"github.com/pkgforge/pkgforge/core/store"
)

// Oracle is the contract JobTask depends on.
type Oracle interface {
	Find(ctx context.Context, job models.JobDefinition, release, staging store.Store, env []models.EnvResource) ([]models.ArtifactPath, error)
}

// ArtifactReuseOracle is the Oracle backed by a Catalog.
type ArtifactReuseOracle struct {
	catalog catalog.Catalog
}

func New(cat catalog.Catalog) *ArtifactReuseOracle {
	return &ArtifactReuseOracle{catalog: cat}
}

// Find implements the four-step query pipeline from spec.md section 4.2. The read guard on
// both stores is held for the whole sort/dedup/resolve pipeline (section 5, "Shared resources")
// so that a concurrent write landing mid-query cannot produce a result that mixes two
// inconsistent snapshots of either store. Every lookup inside that held region goes through
// GetLocked, not Get: Get takes the store's own RLock, and a store's sync.RWMutex does not
// allow a second RLock from the same pipeline while it is already held, so calling Get here
// instead would deadlock as soon as a Put was blocked waiting for this RLock to drain.
func (o *ArtifactReuseOracle) Find(ctx context.Context, job models.JobDefinition, release, staging store.Store, env []models.EnvResource) ([]models.ArtifactPath, error) {
	candidates, err := o.catalog.FindArtifacts(ctx, job.PackageRef, env, true)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeOracle, err, "query catalog for candidate artifacts")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if staging != nil {
		staging.RLock()
		defer staging.RUnlock()
	}
	release.RLock()
	defer release.RUnlock()

	inStaging := func(name string) bool {
		if staging == nil {
			return false
		}
		_, ok, _ := staging.GetLocked(ctx, name)
		return ok
	}

	// Step 2: staging-present candidates first, tie broken by catalog (insertion) order, which
	// FindArtifacts already returns candidates in.
	sorted := make([]catalog.CandidateArtifact, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return inStaging(sorted[i].Name) && !inStaging(sorted[j].Name)
	})

	// Step 3: dedup by name, keeping the first (highest-priority) occurrence.
	seen := make(map[string]bool, len(sorted))
	var deduped []catalog.CandidateArtifact
	for _, c := range sorted {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		deduped = append(deduped, c)
	}

	// Step 4: resolve each to a live ArtifactPath, staging first, then release, else drop.
	var resolved []models.ArtifactPath
	for _, c := range deduped {
		if staging != nil {
			if path, ok, err := staging.GetLocked(ctx, c.Name); err != nil {
				return nil, gerror.Wrap(gerror.CodeOracle, err, "resolve candidate in staging store")
			} else if ok {
				resolved = append(resolved, path)
				continue
			}
		}
		if path, ok, err := release.GetLocked(ctx, c.Name); err != nil {
			return nil, gerror.Wrap(gerror.CodeOracle, err, "resolve candidate in release store")
		} else if ok {
			resolved = append(resolved, path)
		}
		// Neither store has it: the catalog row is stale (e.g. blob garbage-collected). Drop.
	}
	return resolved, nil
}
