package async

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apilibrary/apilibrary/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestSafeGo_RunsTask(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), time.Second, "test", testLogger(), func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), time.Second, "test", testLogger(), func(context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	// Reaching here without the test process dying is the assertion.
}

func TestSafeGo_AppliesTimeout(t *testing.T) {
	expired := make(chan struct{})
	SafeGo(context.Background(), 10*time.Millisecond, "test", testLogger(), func(ctx context.Context) error {
		<-ctx.Done()
		close(expired)
		return ctx.Err()
	})

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("task context never expired")
	}
}

func TestCoalescer_RunsOncePerTrigger(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 10)
	c := NewCoalescer("test", time.Second, testLogger(), func(context.Context) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	})

	c.Trigger(context.Background())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestCoalescer_CollapsesBurst(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	first := true
	var mu sync.Mutex
	c := NewCoalescer("test", 5*time.Second, testLogger(), func(context.Context) error {
		mu.Lock()
		wasFirst := first
		first = false
		mu.Unlock()
		if wasFirst {
			<-release
		}
		if runs.Add(1) == 2 {
			wg.Done()
		}
		return nil
	})

	ctx := context.Background()
	c.Trigger(ctx)
	// Burst while the first run is blocked: all of these coalesce into one
	// follow-up run.
	for i := 0; i < 20; i++ {
		c.Trigger(ctx)
	}
	close(release)

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up run never happened")
	}

	// Give any stray extra runs a moment to show themselves.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
}

func TestCoalescer_RecoversAfterFailure(t *testing.T) {
	calls := make(chan int, 4)
	var n atomic.Int32
	c := NewCoalescer("test", time.Second, testLogger(), func(context.Context) error {
		i := int(n.Add(1))
		calls <- i
		if i == 1 {
			return errors.New("first run fails")
		}
		return nil
	})

	ctx := context.Background()
	c.Trigger(ctx)
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("first run never happened")
	}

	// Wait for the running flag to clear, then trigger again.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return !c.running
	}, time.Second, 5*time.Millisecond)

	c.Trigger(ctx)
	select {
	case i := <-calls:
		assert.Equal(t, 2, i)
	case <-time.After(time.Second):
		t.Fatal("second run never happened")
	}
}

func TestCoalescer_NoRelaunchAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 2)
	var runs atomic.Int32
	c := NewCoalescer("test", time.Second, testLogger(), func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		return nil
	})

	c.Trigger(ctx)
	<-started
	c.Trigger(ctx) // queued as pending
	cancel()       // parent gone before the pending run launches

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), int32(2))
}
