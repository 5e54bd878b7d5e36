package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func newTestPools(t *testing.T, general, integration int) *Pools {
	t.Helper()
	pools, err := NewPools(context.Background(), PoolConfig{
		GeneralPoolSize:     general,
		IntegrationPoolSize: integration,
	})
	require.NoError(t, err)
	return pools
}

func TestNewPools(t *testing.T) {
	pools, err := NewPools(context.Background(), DefaultPoolConfig())
	require.NoError(t, err)
	defer pools.Shutdown()

	assert.NotNil(t, pools.General)
	assert.NotNil(t, pools.Integration)
}

func TestPool_Submit(t *testing.T) {
	pools := newTestPools(t, 4, 2)
	defer pools.Shutdown()

	var executed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)

	err := pools.General.Submit(context.Background(), func(ctx context.Context) {
		executed.Store(true)
		wg.Done()
	})
	require.NoError(t, err)

	wg.Wait()
	assert.True(t, executed.Load())
}

func TestPool_Submit_CancelledContext(t *testing.T) {
	pools := newTestPools(t, 4, 2)
	defer pools.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pools.General.Submit(ctx, func(ctx context.Context) {
		t.Error("task should not execute with cancelled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_RunAll(t *testing.T) {
	pools := newTestPools(t, 4, 2)
	defer pools.Shutdown()

	var count atomic.Int32
	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) { count.Add(1) }
	}

	require.NoError(t, pools.Integration.RunAll(context.Background(), tasks))
	assert.Equal(t, int32(10), count.Load())
}

func TestPool_RunAll_Empty(t *testing.T) {
	pools := newTestPools(t, 1, 1)
	defer pools.Shutdown()

	assert.NoError(t, pools.Integration.RunAll(context.Background(), nil))
}

func TestPool_RunAll_CancelledWhileSaturated(t *testing.T) {
	pools := newTestPools(t, 1, 1)
	defer pools.Shutdown()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, pools.Integration.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started
	baseline := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- pools.Integration.RunAll(ctx, []Task{func(context.Context) { ran.Store(true) }})
	}()

	cancel()
	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("RunAll did not return after cancellation while the pool was busy")
	}

	close(release)
	assert.Eventually(t, func() bool {
		return pools.Integration.pool.Running() == 0 && runtime.NumGoroutine() <= baseline
	}, 2*time.Second, 10*time.Millisecond, "RunAll left goroutines behind")
	assert.False(t, ran.Load(), "a task queued before cancellation must be skipped")
}

func TestPool_RunAll_StopsSubmittingAfterCancel(t *testing.T) {
	pools := newTestPools(t, 1, 1)
	defer pools.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32
	tasks := []Task{
		func(context.Context) { count.Add(1); cancel() },
		func(context.Context) { count.Add(1) },
		func(context.Context) { count.Add(1) },
	}

	assert.ErrorIs(t, pools.Integration.RunAll(ctx, tasks), context.Canceled)
	assert.Eventually(t, func() bool { return pools.Integration.pool.Running() == 0 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}

func TestPools_SubmitDetached(t *testing.T) {
	tests := []struct {
		name     string
		poolName string
	}{
		{"general pool", PoolGeneral},
		{"integration pool", PoolIntegration},
		{"unknown falls back to general", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pools := newTestPools(t, 2, 2)

			var executed atomic.Bool
			var wg sync.WaitGroup
			wg.Add(1)

			err := pools.SubmitDetached(tt.poolName, func(ctx context.Context) {
				executed.Store(true)
				wg.Done()
			})
			require.NoError(t, err)

			wg.Wait()
			pools.Shutdown()
			assert.True(t, executed.Load())
		})
	}
}

func TestPools_Metrics(t *testing.T) {
	pools := newTestPools(t, 10, 3)
	defer pools.Shutdown()

	metrics := pools.Metrics()

	general, ok := metrics[PoolGeneral].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 10, general["cap"])

	integration, ok := metrics[PoolIntegration].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 3, integration["cap"])
}
