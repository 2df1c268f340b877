package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_CoalescesConcurrentCalls(t *testing.T) {
	r := New()
	var calls int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]any, n)
	errs := make([]error, n)
	started := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			results[i], errs[i], _ = r.Do(context.Background(), "k", fn)
		}(i)
	}
	for i := 0; i < n; i++ {
		<-started
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	// Give the remaining goroutines time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for i, v := range results {
		require.NoError(t, errs[i])
		require.Equal(t, 42, v)
	}
	require.Zero(t, r.InFlight())
}

func TestDo_SharesFailure(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	release := make(chan struct{})
	var calls int32
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil, boom
	}

	errs := make(chan error, 2)
	go func() { _, err, _ := r.Do(context.Background(), "k", fn); errs <- err }()
	require.Eventually(t, func() bool { return r.InFlight() == 1 }, time.Second, time.Millisecond)
	go func() { _, err, _ := r.Do(context.Background(), "k", fn); errs <- err }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.Same(t, boom, <-errs)
	require.Same(t, boom, <-errs)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDo_EvictsAfterSettle(t *testing.T) {
	r := New()
	var calls int32
	fn := func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}
	v1, _, _ := r.Do(context.Background(), "k", fn)
	v2, _, _ := r.Do(context.Background(), "k", fn)
	require.EqualValues(t, 1, v1)
	require.EqualValues(t, 2, v2)
}

func TestDo_EmptyKeyNeverShares(t *testing.T) {
	r := New()
	_, _, shared := r.Do(context.Background(), "", func(ctx context.Context) (any, error) { return nil, nil })
	require.False(t, shared)
	require.Zero(t, r.InFlight())
}

func TestKey_LengthPrefixed(t *testing.T) {
	require.NotEqual(t, Key([]byte("ab"), []byte("c")), Key([]byte("a"), []byte("bc")))
	require.Equal(t, Key([]byte("a"), []byte("b")), Key([]byte("a"), []byte("b")))
}
