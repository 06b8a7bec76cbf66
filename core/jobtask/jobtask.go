// Package jobtask implements JobTask (spec.md section 4.3): one goroutine per DAG node that
// waits for its dependencies, consults the reuse oracle, dispatches through the endpoint
// scheduler when necessary, and forwards its outcome downstream.
package jobtask

import (
	"context"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/endpoint"
	"github.com/pkgforge/pkgforge/core/oracle"
	"github.com/pkgforge/pkgforge/core/progress"
	"github.com/pkgforge/pkgforge/core/sourcecache"
	"github.com/pkgforge/pkgforge/core/store"
)

// Collaborators bundles the read-only, shared-ownership dependencies every Task holds a
// reference to (spec.md section 3, "Ownership": "shares ownership of the scheduler, stores, and
// catalog handle with every other JobTask").
type Collaborators struct {
	Oracle      oracle.Oracle
	Scheduler   *endpoint.Scheduler
	Release     store.Store
	Staging     store.Store
	SourceCache sourcecache.SourceCache
	LogFactory  logger.LogFactory
	// NewLogSink builds the per-job LogSink handed to the endpoint driver. May be nil, in
	// which case the driver receives a nil sink (acceptable: LogSink is write-only and the
	// core never reads from it).
	NewLogSink func(models.JobID) endpoint.LogSink
}

// Task is one DAG node's JobTask. Each Task exclusively owns its inbound receiver and its
// progress handle; everything else in Collaborators is shared.
type Task struct {
	job      models.JobDefinition
	inbound  *FanIn
	outbound []*Sender
	progress progress.TaskHandle
	deps     Collaborators
	log      logger.Log
}

// New constructs a Task. outbound must already reflect the root substitution from spec.md
// section 4.4 step 2 (an empty outbound list is never valid here; the orchestrator replaces it
// with [root_sender] before calling New).
func New(job models.JobDefinition, inbound *FanIn, outbound []*Sender, progressHandle progress.TaskHandle, deps Collaborators) *Task {
	return &Task{
		job:      job,
		inbound:  inbound,
		outbound: outbound,
		progress: progressHandle,
		deps:     deps,
		log:      deps.LogFactory(job.PackageRef.String()),
	}
}

// Run drives the task through its whole state machine (spec.md section 4.3) and returns once it
// has communicated its outcome to every downstream, or - when its inbound channel closes with a
// dependency neither delivered nor failed, which happens on a miswired DAG and also downstream of
// a failed job with more than one dependent (see emitFailure) - returns a non-nil error so the
// orchestrator can abort the whole run. Every other outcome (FAIL, REUSE, DISPATCH success or failure) is
// reported through the outbound channels, not through Run's return value, matching the spec's
// "exit Ok" annotation on every transition except the unmet-dependency one.
func (t *Task) Run(ctx context.Context) error {
	defer t.progress.Release()
	t.progress.SetStatus("waiting")

	receivedDeps := make(map[models.JobID][]models.ArtifactPath)
	receivedErrs := make(map[models.JobID]error)

	for {
		select {
		case msg, ok := <-t.inbound.Recv():
			if !ok {
				goto accounted
			}
			for id, artifacts := range msg.OK {
				receivedDeps[id] = artifacts
			}
			for id, err := range msg.Err {
				receivedErrs[id] = err
			}
		case <-ctx.Done():
			return nil
		}
	}
accounted:

	var unmet []models.JobID
	for _, depID := range t.job.Dependencies {
		_, gotOK := receivedDeps[depID]
		_, gotErr := receivedErrs[depID]
		if !gotOK && !gotErr {
			unmet = append(unmet, depID)
		}
	}
	if len(unmet) > 0 {
		err := gerror.Newf(gerror.CodeInternalInvariant,
			"job %s: inbound channel closed with unmet dependencies %v", t.job.PackageRef, unmet)
		t.progress.FinishError("internal error: " + err.Error())
		return err
	}

	if len(receivedErrs) > 0 {
		t.progress.FinishError("errors from child received")
		t.emitFailure(receivedErrs)
		return nil
	}

	env := models.Env(t.job.Resources)
	depArtifacts := flatten(receivedDeps)

	t.progress.SetStatus("checking reuse")
	reused, err := t.deps.Oracle.Find(ctx, t.job, t.deps.Release, t.deps.Staging, env)
	if err != nil {
		werr := gerror.Wrap(gerror.CodeOracle, err, "reuse oracle")
		t.progress.FinishError(werr.Error())
		t.emitFailure(map[models.JobID]error{t.job.ID: werr})
		return nil
	}
	if len(reused) > 0 {
		t.progress.Finish("reused")
		t.emitSuccess(reused)
		return nil
	}

	t.progress.SetStatus("building")
	runnable := endpoint.RunnableJob{Job: t.job, DependencyArtifacts: depArtifacts, Env: env}
	var sink endpoint.LogSink
	if t.deps.NewLogSink != nil {
		sink = t.deps.NewLogSink(t.job.ID)
	}

	handle, err := t.deps.Scheduler.Schedule(ctx, runnable, sink)
	if err != nil {
		t.progress.FinishError(err.Error())
		t.emitFailure(map[models.JobID]error{t.job.ID: err})
		return nil
	}
	artifacts, err := handle.Run(ctx)
	if err != nil {
		t.progress.FinishError(err.Error())
		t.emitFailure(map[models.JobID]error{t.job.ID: err})
		return nil
	}
	t.progress.Finish("built")
	t.emitSuccess(artifacts)
	return nil
}

// emitFailure implements the error-channel policy (spec.md section 4.3): the failure map is
// forwarded to exactly one downstream; every other downstream's sender is closed without a
// message, which - because every job with more than one dependent still requires all of its
// dependencies to be accounted for - cascades the failure onward as an unmet-dependency
// violation at any dependent that was counting on this message rather than silently stalling.
func (t *Task) emitFailure(errs map[models.JobID]error) {
	t.outbound[0].Send(models.JobResult{Err: errs})
	t.outbound[0].Close()
	for _, s := range t.outbound[1:] {
		s.Close()
	}
}

// emitSuccess broadcasts to every downstream (spec.md section 4.3: "successes are broadcast to
// all downstreams").
func (t *Task) emitSuccess(artifacts []models.ArtifactPath) {
	msg := models.JobResult{OK: map[models.JobID][]models.ArtifactPath{t.job.ID: artifacts}}
	for _, s := range t.outbound {
		s.Send(msg)
		s.Close()
	}
}

func flatten(deps map[models.JobID][]models.ArtifactPath) []models.ArtifactPath {
	var out []models.ArtifactPath
	for _, artifacts := range deps {
		out = append(out, artifacts...)
	}
	return out
}
