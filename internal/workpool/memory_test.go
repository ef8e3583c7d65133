package workpool

import (
	"context"
	"cropstudy/internal/testutil"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsAllTasks(t *testing.T) {
	t.Parallel()
	p := New(Config{Name: "test", Workers: 3, BufferSize: 2}, nil)

	var ran atomic.Int64
	for i := 0; i < 50; i++ {
		if err := p.Submit(context.Background(), func() { ran.Add(1) }); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if ran.Load() != 50 {
		t.Errorf("expected 50 tasks to run, got %d", ran.Load())
	}
	stats := p.Stats()
	if stats.Queued != 50 || stats.Completed != 50 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	p := New(Config{Name: "test", Workers: 2}, nil)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent tasks, saw %d", peak.Load())
	}
	p.Close(context.Background())
}

func TestPool_SubmitBlocksUntilContextDone(t *testing.T) {
	t.Parallel()
	p := New(Config{Name: "test", Workers: 1, BufferSize: 1}, nil)

	release := make(chan struct{})
	var started atomic.Int64
	p.Submit(context.Background(), func() { started.Add(1); <-release })
	testutil.MustWaitForCount(t, &started, 1, testutil.WithTimeout(5*time.Second), testutil.WithInterval(time.Millisecond))
	p.Submit(context.Background(), func() {}) // fills the buffer

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	close(release)
	p.Close(context.Background())
}

func TestPool_RecoversPanics(t *testing.T) {
	t.Parallel()
	p := New(Config{Name: "test", Workers: 1}, nil)

	var after atomic.Int64
	p.Submit(context.Background(), func() { panic("boom") })
	p.Submit(context.Background(), func() { after.Add(1) })
	p.Close(context.Background())

	if after.Load() != 1 {
		t.Error("expected worker to survive a panicking task")
	}
	if p.Stats().Panicked != 1 {
		t.Errorf("expected 1 panicked task, got %d", p.Stats().Panicked)
	}
}

func TestPool_SubmitAfterClose(t *testing.T) {
	t.Parallel()
	p := New(Config{Name: "test", Workers: 1}, nil)
	p.Close(context.Background())

	if err := p.Submit(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestPool_CloseTimesOut(t *testing.T) {
	t.Parallel()
	p := New(Config{Name: "test", Workers: 1}, nil)

	release := make(chan struct{})
	defer close(release)
	p.Submit(context.Background(), func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
