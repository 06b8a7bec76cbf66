// Package endpoint implements the EndpointPool and EndpointScheduler (spec.md section 4.1):
// load-balanced dispatch of runnable jobs across remote build endpoints.
package endpoint

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/store"
)

// LogItem is one structured entry written to a LogSink. The core does not interpret the
// payload beyond passing it through (spec.md section 6).
type LogItem struct {
	Stream  string // "stdout" or "stderr"
	Message string
}

// LogSink is the write-only streaming interface the endpoint driver writes job output to.
type LogSink interface {
	Write(item LogItem)
	io.Closer
}

// RunnableJob is the materialised job the scheduler hands to a driver: the frozen
// JobDefinition plus its resolved dependency artifacts, ready to execute (spec.md section 4.3,
// "Build materialisation").
type RunnableJob struct {
	Job                 models.JobDefinition
	DependencyArtifacts []models.ArtifactPath
	Env                 []models.EnvResource
}

// Driver is the contract the core consumes (spec.md section 6): accepts a runnable job and a
// log sink, returns artifact paths or error, and reports its current load.
type Driver interface {
	Run(ctx context.Context, job RunnableJob, logs LogSink, staging store.Store) ([]models.ArtifactPath, error)
	NumberOfRunningContainers(ctx context.Context) (int, error)
}

// Endpoint pairs a driver with an id and the per-endpoint mutual-exclusion guard the pool
// holds around the load query (spec.md section 4.1, "Concurrency").
type Endpoint struct {
	ID     models.EndpointID
	Driver Driver

	loadMu sync.Mutex

	// reserved is an optimistic count of jobs this process has dispatched to this endpoint
	// whose driver call has not yet returned, covering the gap before the driver's own load
	// query reflects a new container. It is a supplement beyond the spec's literal algorithm
	// (see SPEC_FULL.md section 12): without it, a burst of
	// concurrent schedule() calls can all observe load 0 on the same endpoint and pile onto it
	// before number_of_running_containers() catches up.
	reserved int64
}

func (e *Endpoint) load(ctx context.Context) (int, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	n, err := e.Driver.NumberOfRunningContainers(ctx)
	if err != nil {
		return 0, err
	}
	return n + int(atomic.LoadInt64(&e.reserved)), nil
}

// Pool owns a set of container endpoints and implements the ascending-load selection algorithm
// from spec.md section 4.1.
type Pool struct {
	endpoints []*Endpoint
	log       logger.Log
}

func NewPool(endpoints []*Endpoint, logFactory logger.LogFactory) *Pool {
	return &Pool{endpoints: endpoints, log: logFactory("EndpointPool")}
}

type endpointLoad struct {
	endpoint *Endpoint
	index    int
	load     int
	err      error
}

// Acquire polls every endpoint's load concurrently and returns the least-loaded one, ties
// broken by enumeration order. If no endpoint is reachable it loops with no sleep, as the spec
// requires; ctx cancellation is the only way out of that loop. If any endpoint's load query
// fails outright (as opposed to being merely unreachable-right-now), the whole call fails -
// the spec draws no distinction between these two conditions for a single driver, so here
// "unreachable" means the context expiring or being canceled between polls, and any error
// returned by a driver is treated as a real error per the spec's "if an endpoint errors during
// the load query, the whole schedule call fails" rule.
func (p *Pool) Acquire(ctx context.Context) (*Endpoint, error) {
	if len(p.endpoints) == 0 {
		return nil, gerror.New(gerror.CodeEndpointUnreachable, "no endpoints configured")
	}
	for {
		select {
		case <-ctx.Done():
			return nil, gerror.Wrap(gerror.CodeEndpointUnreachable, ctx.Err(), "no endpoint became reachable")
		default:
		}

		results := make([]endpointLoad, len(p.endpoints))
		var wg sync.WaitGroup
		for i, ep := range p.endpoints {
			wg.Add(1)
			go func(i int, ep *Endpoint) {
				defer wg.Done()
				n, err := ep.load(ctx)
				results[i] = endpointLoad{endpoint: ep, index: i, load: n, err: err}
			}(i, ep)
		}
		wg.Wait()

		for _, r := range results {
			if r.err != nil {
				return nil, gerror.Wrap(gerror.CodeScheduler, r.err, "query endpoint load")
			}
		}

		sort.SliceStable(results, func(i, j int) bool { return results[i].load < results[j].load })
		if len(results) > 0 {
			chosen := results[0].endpoint
			atomic.AddInt64(&chosen.reserved, 1)
			return chosen, nil
		}
	}
}

// Release decrements the optimistic reservation placed on ep by Acquire. JobHandle.Run calls it
// when the driver's Run returns, success or failure, so while a job runs it counts toward the
// endpoint's load both through its reservation and through the driver's own container count.
func (p *Pool) Release(ep *Endpoint) {
	atomic.AddInt64(&ep.reserved, -1)
}
