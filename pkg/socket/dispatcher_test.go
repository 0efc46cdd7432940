package socket

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/dittonet/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversEveryRecord(t *testing.T) {
	pool := event.NewPool(16)

	var handled atomic.Int64
	d := NewDispatcher(4, func(rec *event.Record) {
		handled.Add(1)
		rec.Release()
	})
	d.Start()

	for i := 0; i < 1000; i++ {
		require.True(t, d.Post(pool.Get()))
	}

	d.Close()

	assert.Equal(t, int64(1000), handled.Load())
	assert.Equal(t, uint64(1000), d.Processed())
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestDispatcher_SingleWorkerIsFIFO(t *testing.T) {
	pool := event.NewPool(16)

	var mu sync.Mutex
	var order []int
	d := NewDispatcher(1, func(rec *event.Record) {
		mu.Lock()
		order = append(order, rec.N)
		mu.Unlock()
		rec.Release()
	})

	for i := 0; i < 50; i++ {
		rec := pool.Get()
		rec.N = i
		require.True(t, d.Post(rec))
	}
	assert.Equal(t, 50, d.Pending())

	d.Start()
	d.Close()

	require.Len(t, order, 50)
	for i, n := range order {
		assert.Equal(t, i, n)
	}
}

func TestDispatcher_PostAfterClose(t *testing.T) {
	pool := event.NewPool(16)
	d := NewDispatcher(1, func(rec *event.Record) { rec.Release() })
	d.Start()
	d.Close()

	rec := pool.Get()
	assert.False(t, d.Post(rec))
	rec.Release()

	// Second close is harmless.
	d.Close()
}

func TestDispatcher_CloseWithoutStartReleasesQueued(t *testing.T) {
	pool := event.NewPool(16)
	d := NewDispatcher(2, func(rec *event.Record) {
		t.Fatal("handler must not run")
	})

	for i := 0; i < 5; i++ {
		require.True(t, d.Post(pool.Get()))
	}
	d.Close()

	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	pool := event.NewPool(16)

	var handled atomic.Int64
	d := NewDispatcher(1, func(rec *event.Record) {
		defer rec.Release()
		if rec.N == 1 {
			panic("bad completion")
		}
		handled.Add(1)
	})
	d.Start()
	defer d.Close()

	for i := 0; i < 3; i++ {
		rec := pool.Get()
		rec.N = i
		require.True(t, d.Post(rec))
	}

	require.Eventually(t, func() bool {
		return d.Processed() == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), handled.Load())
}

func TestDispatcher_DefaultWorkers(t *testing.T) {
	d := NewDispatcher(0, func(*event.Record) {})
	assert.Positive(t, d.Workers())
}
