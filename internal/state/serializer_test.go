package state

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/metrics"
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/worldstate"
)

func testLog() *logrus.Entry {
	return logrus.New().WithField("component", "state_test")
}

func TestRunAppliesItemsInOrder(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	q := NewQueue()
	s := New(q, store, metrics.New(), testLog())

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		q.Push(Item(func(store *worldstate.Store) error {
			order = append(order, i)
			return nil
		}))
	}
	q.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// give the flush sentinel time to be observed, then cancel to stop the loop
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected items applied in push order, got %v", order)
	}
}

func TestRunHaltsOnFatalStateIOError(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	q := NewQueue()
	s := New(q, store, metrics.New(), testLog())

	q.Push(Item(func(store *worldstate.Store) error {
		return types.New(types.ErrStateIO, "simulated fatal I/O failure")
	}))
	// this item must never run since the loop halts on the fatal error above
	ran := false
	q.Push(Item(func(store *worldstate.Store) error {
		ran = true
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Run(ctx)
	if err == nil {
		t.Fatalf("expected Run to return the fatal error")
	}
	if ran {
		t.Fatalf("expected the state queue to halt before draining further items")
	}
}

func TestRunContinuesPastNonFatalItemError(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	q := NewQueue()
	s := New(q, store, metrics.New(), testLog())

	q.Push(Item(func(store *worldstate.Store) error {
		return types.New(types.ErrProofGenFailed, "simulated prover rejection")
	}))
	second := false
	q.Push(Item(func(store *worldstate.Store) error {
		second = true
		return nil
	}))
	q.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if !second {
		t.Fatalf("expected the loop to continue past a non-fatal item error")
	}
}
