package endpoint

import (
	"context"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/store"
)

// Scheduler is a thin policy layer over Pool providing schedule(job, log_sink) -> JobHandle
// (spec.md section 4.1). Queueing is implicit: Schedule suspends (via Pool.Acquire) until an
// endpoint is free.
type Scheduler struct {
	pool    *Pool
	staging store.Store
}

func NewScheduler(pool *Pool, staging store.Store) *Scheduler {
	return &Scheduler{pool: pool, staging: staging}
}

// JobHandle resolves to artifact paths on completion; Run invokes the bound endpoint driver
// exactly once.
type JobHandle struct {
	scheduler *Scheduler
	endpoint  *Endpoint
	job       RunnableJob
	logs      LogSink
}

// Schedule suspends until at least one endpoint is selectable, then returns a handle bound to
// (endpoint, job, log_sink, store handles). An endpoint driver error is reported as the job's
// error; it does not mark the endpoint dead (the pool has no eviction logic - spec.md section
// 4.1, "Failure").
func (s *Scheduler) Schedule(ctx context.Context, job RunnableJob, logs LogSink) (*JobHandle, error) {
	ep, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &JobHandle{scheduler: s, endpoint: ep, job: job, logs: logs}, nil
}

// Run invokes the endpoint driver and releases the endpoint's optimistic reservation once the
// driver call returns, win or lose.
func (h *JobHandle) Run(ctx context.Context) ([]models.ArtifactPath, error) {
	defer h.scheduler.pool.Release(h.endpoint)
	artifacts, err := h.endpoint.Driver.Run(ctx, h.job, h.logs, h.scheduler.staging)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "endpoint driver run")
	}
	return artifacts, nil
}
