package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"NewsRadar/internal/domain"
)

func TestQueueRoundtrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(8, nil)

	var mu sync.Mutex
	handled := make(map[string]bool)
	done := make(chan struct{}, 3)

	q.StartWorkers(ctx, 2, func(_ context.Context, task domain.FetchTask) {
		mu.Lock()
		handled[task.ID] = true
		mu.Unlock()
		done <- struct{}{}
	})

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, domain.FetchTask{ID: id, Provider: "newsapi", Symbol: "WID"}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for workers")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range []string{"a", "b", "c"} {
		if !handled[id] {
			t.Fatalf("task %s was not handled", id)
		}
	}
}

func TestQueueFullBuffer(t *testing.T) {
	t.Parallel()

	q := New(1, nil)
	ctx := context.Background()

	if err := q.Enqueue(ctx, domain.FetchTask{ID: "first"}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}

	err := q.Enqueue(ctx, domain.FetchTask{ID: "second"})
	if err == nil {
		t.Fatalf("expected full-buffer error")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("full buffer should be transient, got %v", err)
	}
}

func TestQueueEnqueueDuringCloseDoesNotPanic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(4, nil)
	q.StartWorkers(ctx, 1, func(context.Context, domain.FetchTask) {})

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if err := q.Enqueue(ctx, domain.FetchTask{ID: "t"}); err != nil {
					if !domain.IsTransient(err) {
						t.Errorf("enqueue after close should be transient, got %v", err)
					}
					return
				}
			}
		}()
	}

	q.Close()
	wg.Wait()

	if err := q.Enqueue(ctx, domain.FetchTask{ID: "late"}); !domain.IsTransient(err) {
		t.Fatalf("expected transient error after close, got %v", err)
	}
}

func TestQueueCloseDrains(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(8, nil)

	var mu sync.Mutex
	count := 0
	q.StartWorkers(ctx, 1, func(_ context.Context, _ domain.FetchTask) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, domain.FetchTask{ID: "t"}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	q.Close()

	mu.Lock()
	got := count
	mu.Unlock()
	if got != 5 {
		t.Fatalf("expected 5 tasks drained, got %d", got)
	}

	if err := q.Enqueue(ctx, domain.FetchTask{ID: "late"}); err == nil {
		t.Fatalf("expected error after close")
	}
}
