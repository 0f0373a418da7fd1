package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestScheduler_CapsInFlightPerClass(t *testing.T) {
	s := New(testLogger(t), Config{MaxInFlight: map[JobClass]int{ClassASR: 1}, QueueCap: 4})

	p1, err := s.TryAcquire(context.Background(), ClassASR, 0)
	require.NoError(t, err)

	_, err = s.TryAcquire(context.Background(), ClassASR, 0)
	var qf *errs.QueueFull
	require.ErrorAs(t, err, &qf, "a second immediate acquire beyond the cap must refuse")

	p1.Release(true)

	p2, err := s.TryAcquire(context.Background(), ClassASR, 0)
	require.NoError(t, err)
	p2.Release(true)
}

func TestScheduler_QueueFullWhenQueueCapExceeded(t *testing.T) {
	s := New(testLogger(t), Config{MaxInFlight: map[JobClass]int{ClassEntity: 1}, QueueCap: 1})
	p1, err := s.TryAcquire(context.Background(), ClassEntity, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.TryAcquire(context.Background(), ClassEntity, 200*time.Millisecond)
	}()
	time.Sleep(20 * time.Millisecond) // let the first waiter join the queue

	_, err = s.TryAcquire(context.Background(), ClassEntity, 200*time.Millisecond)
	var qf *errs.QueueFull
	require.ErrorAs(t, err, &qf, "queue already at cap must refuse the second waiter immediately")

	p1.Release(true)
	wg.Wait()
}

func TestScheduler_FIFOHandoffWithinClass(t *testing.T) {
	s := New(testLogger(t), Config{MaxInFlight: map[JobClass]int{ClassEmbedding: 1}, QueueCap: 8})
	p1, err := s.TryAcquire(context.Background(), ClassEmbedding, 0)
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Duration(i) * 5 * time.Millisecond)
			p, err := s.TryAcquire(context.Background(), ClassEmbedding, time.Second)
			if err == nil {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				p.Release(true)
			}
		}()
	}
	time.Sleep(30 * time.Millisecond)
	p1.Release(true)
	wg.Wait()

	require.Equal(t, []int{0, 1, 2}, order, "waiters must be served in arrival order")
}

func TestScheduler_RunTimesOutAndReclaimsPermit(t *testing.T) {
	s := New(testLogger(t), Config{MaxInFlight: map[JobClass]int{ClassVisualCaption: 1}, QueueCap: 4, JobTimeout: 20 * time.Millisecond})

	err := s.Run(context.Background(), ClassVisualCaption, 0, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	var to *errs.TimedOut
	require.ErrorAs(t, err, &to)

	stats := s.Stats(ClassVisualCaption)
	require.Equal(t, 0, stats.InFlight, "permit must be reclaimed after timeout")
	require.Equal(t, int64(1), stats.TimedOut)
}

func TestScheduler_RunSucceeds(t *testing.T) {
	s := New(testLogger(t), Config{MaxInFlight: map[JobClass]int{ClassVisionOCR: 2}, QueueCap: 4})
	var calls int32
	err := s.Run(context.Background(), ClassVisionOCR, 0, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls)
	require.Equal(t, int64(1), s.Stats(ClassVisionOCR).Completed)
}
