package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFIFOOrderSingleProducer(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		v, flush, ok := q.Get(ctx)
		if !ok || flush {
			t.Fatalf("unexpected get result: v=%d flush=%v ok=%v", v, flush, ok)
		}
		if v != i {
			t.Fatalf("expected %d, got %d", i, v)
		}
	}
}

func TestConcurrentProducersDeliverAllItems(t *testing.T) {
	q := New[int]()
	const producers = 8
	const perProducer = 100
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool)
	ctx := context.Background()
	for i := 0; i < producers*perProducer; i++ {
		v, _, ok := q.Get(ctx)
		if !ok {
			t.Fatalf("expected an item, queue ended early")
		}
		if seen[v] {
			t.Fatalf("item %d delivered twice", v)
		}
		seen[v] = true
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("expected %d distinct items, got %d", producers*perProducer, len(seen))
	}
}

func TestFlushIsObservedDistinctFromValue(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Flush()
	q.Push(2)

	ctx := context.Background()
	v, flush, ok := q.Get(ctx)
	if !ok || flush || v != 1 {
		t.Fatalf("expected value 1, got v=%d flush=%v ok=%v", v, flush, ok)
	}
	_, flush, ok = q.Get(ctx)
	if !ok || !flush {
		t.Fatalf("expected a flush sentinel")
	}
	v, flush, ok = q.Get(ctx)
	if !ok || flush || v != 2 {
		t.Fatalf("expected value 2 after the flush, got v=%d flush=%v ok=%v", v, flush, ok)
	}
}

func TestGetBlocksThenWakesOnPush(t *testing.T) {
	q := New[int]()
	ctx := context.Background()
	done := make(chan int, 1)
	go func() {
		v, _, ok := q.Get(ctx)
		if !ok {
			return
		}
		done <- v
	}()

	select {
	case <-done:
		t.Fatalf("Get returned before any item was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(42)
	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("Get never woke up after Push")
	}
}

func TestCancelUnblocksGetWithTombstone(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() {
		_, _, ok := q.Get(ctx)
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-result:
		if ok {
			t.Fatalf("expected tombstone (ok=false) after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatalf("Get never returned after context cancellation")
	}
}

func TestDepthReflectsPendingItems(t *testing.T) {
	q := New[int]()
	if d := q.Depth(); d != 0 {
		t.Fatalf("expected empty queue, got depth %d", d)
	}
	q.Push(1)
	q.Push(2)
	if d := q.Depth(); d != 2 {
		t.Fatalf("expected depth 2, got %d", d)
	}
	q.Get(context.Background())
	if d := q.Depth(); d != 1 {
		t.Fatalf("expected depth 1 after one Get, got %d", d)
	}
}
