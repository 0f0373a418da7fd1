package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New("vision", Config{FailureThreshold: 3, OpenTimeout: 50 * time.Millisecond, HalfOpenSuccessThreshold: 1})
	fail := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := b.Invoke(context.Background(), func(context.Context) error { return fail })
		require.ErrorIs(t, err, fail)
	}
	require.Equal(t, Open, b.State())

	err := b.Invoke(context.Background(), func(context.Context) error { return nil })
	var bo *errs.BreakerOpen
	require.ErrorAs(t, err, &bo)
}

func TestBreaker_HalfOpenProbeThenClose(t *testing.T) {
	b := New("vision", Config{FailureThreshold: 1, OpenTimeout: 20 * time.Millisecond, HalfOpenSuccessThreshold: 1})
	_ = b.Invoke(context.Background(), func(context.Context) error { return errors.New("x") })
	require.Equal(t, Open, b.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	err := b.Invoke(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	require.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New("vision", Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenSuccessThreshold: 1})
	_ = b.Invoke(context.Background(), func(context.Context) error { return errors.New("x") })
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	err := b.Invoke(context.Background(), func(context.Context) error { return errors.New("still broken") })
	require.Error(t, err)
	require.Equal(t, Open, b.State())
}

func TestBreaker_OnlyOneHalfOpenProbeAtATime(t *testing.T) {
	b := New("vision", Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenSuccessThreshold: 1})
	_ = b.Invoke(context.Background(), func(context.Context) error { return errors.New("x") })
	time.Sleep(15 * time.Millisecond)

	var wg sync.WaitGroup
	var refused int
	var mu sync.Mutex
	release := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Invoke(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()

	time.Sleep(5 * time.Millisecond)
	err := b.Invoke(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		mu.Lock()
		refused++
		mu.Unlock()
	}
	close(release)
	wg.Wait()

	require.Equal(t, 1, refused, "second concurrent half-open caller must be refused")
}
