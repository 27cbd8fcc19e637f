package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitBoundsConcurrency(t *testing.T) {
	p := newWorkerPool(2)
	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := submit(context.Background(), p, func() (int, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return 0, nil
			})
			if err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
	if p.Active() != 0 {
		t.Fatalf("Active = %d after all jobs, want 0", p.Active())
	}
}

func TestSubmitReturnsResult(t *testing.T) {
	p := newWorkerPool(1)
	v, err := submit(context.Background(), p, func() (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("submit = %q, %v", v, err)
	}
	boom := errors.New("boom")
	if _, err := submit(context.Background(), p, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestSubmitCanceledWhileQueued(t *testing.T) {
	p := newWorkerPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go submit(context.Background(), p, func() (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := submit(ctx, p, func() (int, error) {
		t.Errorf("queued job ran")
		return 0, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestNewWorkerPoolMinimumSize(t *testing.T) {
	if got := newWorkerPool(0).Size(); got != 1 {
		t.Fatalf("Size = %d, want 1", got)
	}
}
