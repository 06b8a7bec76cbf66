package endpoint_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/endpoint"
	"github.com/pkgforge/pkgforge/core/store"
)

type fakeDriver struct {
	id      string
	running int64
	mu      sync.Mutex
	calls   []string
}

func (f *fakeDriver) NumberOfRunningContainers(ctx context.Context) (int, error) {
	return int(atomic.LoadInt64(&f.running)), nil
}

func (f *fakeDriver) Run(ctx context.Context, job endpoint.RunnableJob, logs endpoint.LogSink, staging store.Store) ([]models.ArtifactPath, error) {
	atomic.AddInt64(&f.running, 1)
	defer atomic.AddInt64(&f.running, -1)
	f.mu.Lock()
	f.calls = append(f.calls, job.Job.PackageRef.Name)
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func TestPool_Acquire_PicksLeastLoaded(t *testing.T) {
	busy := &fakeDriver{running: 5}
	idle := &fakeDriver{running: 0}
	pool := endpoint.NewPool([]*endpoint.Endpoint{
		{ID: models.NewEndpointID(), Driver: busy},
		{ID: models.NewEndpointID(), Driver: idle},
	}, logger.NoOpLogFactory)

	chosen, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, idle, chosen.Driver)
}

func TestPool_Acquire_NoEndpoints(t *testing.T) {
	pool := endpoint.NewPool(nil, logger.NoOpLogFactory)
	_, err := pool.Acquire(context.Background())
	require.Error(t, err)
}

func TestScheduler_LoadBalancesConcurrentDispatch(t *testing.T) {
	d1 := &fakeDriver{}
	d2 := &fakeDriver{}
	pool := endpoint.NewPool([]*endpoint.Endpoint{
		{ID: models.NewEndpointID(), Driver: d1},
		{ID: models.NewEndpointID(), Driver: d2},
	}, logger.NoOpLogFactory)
	sched := endpoint.NewScheduler(pool, nil)

	run := func(name string) {
		h, err := sched.Schedule(context.Background(), endpoint.RunnableJob{
			Job: models.JobDefinition{PackageRef: models.PackageRef{Name: name}},
		}, nil)
		require.NoError(t, err)
		_, err = h.Run(context.Background())
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); run("a") }()
	go func() { defer wg.Done(); run("b") }()
	wg.Wait()

	assert.Equal(t, 1, len(d1.calls))
	assert.Equal(t, 1, len(d2.calls))
}
