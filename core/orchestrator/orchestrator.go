// Package orchestrator implements Orchestrator.run (spec.md section 4.4): it wires one FanIn
// per job, launches one JobTask goroutine per job, and waits for the unique root's outcome.
package orchestrator

import (
	"context"
	"sync"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/dag"
	"github.com/pkgforge/pkgforge/core/jobtask"
	"github.com/pkgforge/pkgforge/core/progress"
)

// Orchestrator wires and runs a whole JobDag to completion.
type Orchestrator struct {
	reporter progress.Reporter
	deps     jobtask.Collaborators
}

func New(reporter progress.Reporter, deps jobtask.Collaborators) *Orchestrator {
	return &Orchestrator{reporter: reporter, deps: deps}
}

// Run implements the wiring algorithm of spec.md section 4.4:
//  1. allocate one FanIn per job, sized to its number of dependencies (one Sender per upstream
//     job);
//  2. the unique root's outbound list is replaced with a single sender feeding a dedicated
//     root FanIn that this function itself reads from;
//  3. launch one JobTask per job;
//  4. read exactly one message off the root FanIn and translate it into the final result.
//
// If any task's Run returns a non-nil error - the internal-invariant case of an inbound channel
// closing with a dependency unaccounted for, which also arises downstream of a failed job with
// more than one dependent (see jobtask's emitFailure) - the shared context is canceled so every other still-waiting task unblocks and releases its
// progress handle via the abandonment path, and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context, d dag.JobDag) ([]models.ArtifactPath, map[models.JobID]error, error) {
	roots := d.Roots()
	if len(roots) != 1 {
		return nil, nil, gerror.Newf(gerror.CodeWiring, "DAG must have exactly one root, found %d", len(roots))
	}
	root := roots[0]

	jobs := d.Jobs()
	fanins := make(map[models.JobID]*jobtask.FanIn, len(jobs))
	for _, j := range jobs {
		expected := len(j.Dependencies)
		fanins[j.ID] = jobtask.NewFanIn(expected)
	}

	rootFanIn := jobtask.NewFanIn(1)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatalErr error

	for _, j := range jobs {
		var outbound []*jobtask.Sender
		if j.ID.Equal(root.ID) {
			outbound = []*jobtask.Sender{rootFanIn.Sender()}
		} else {
			for _, dependent := range d.Dependents(j.ID) {
				outbound = append(outbound, fanins[dependent.ID].Sender())
			}
		}

		handle := o.reporter.NewTask(j.ID, j.PackageRef.String())
		task := jobtask.New(j, fanins[j.ID], outbound, handle, o.deps)

		wg.Add(1)
		go func(t *jobtask.Task) {
			defer wg.Done()
			if err := t.Run(runCtx); err != nil {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
				cancel()
			}
		}(task)
	}

	// A task that returns a fatal error, or stops on cancellation, never closes its outbound
	// senders, so the root FanIn may never close; the canceled context ends the wait instead.
	var msg models.JobResult
	var ok bool
	select {
	case msg, ok = <-rootFanIn.Recv():
	case <-runCtx.Done():
	}

	mu.Lock()
	gotFatal := fatalErr
	mu.Unlock()
	if gotFatal != nil {
		wg.Wait()
		return nil, nil, gotFatal
	}
	if !ok {
		wg.Wait()
		return nil, nil, gerror.Newf(gerror.CodeInternalInvariant, "root job %s: channel closed with no result", root.PackageRef)
	}

	wg.Wait()

	if msg.IsErr() {
		return nil, msg.Err, nil
	}
	var artifacts []models.ArtifactPath
	for _, paths := range msg.OK {
		artifacts = append(artifacts, paths...)
	}
	return artifacts, nil, nil
}
