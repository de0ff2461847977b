package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	return logrus.New().WithField("component", "pipeline_test")
}

func TestRunWaitsForAllTasksToExitCleanly(t *testing.T) {
	s := New(testLog())
	ran := make(chan struct{}, 2)
	s.Add("a", func(ctx context.Context) error {
		<-ctx.Done()
		ran <- struct{}{}
		return nil
	})
	s.Add("b", func(ctx context.Context) error {
		<-ctx.Done()
		ran <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("expected no error once all tasks exit cleanly on cancellation, got %v", err)
	}
	if len(ran) != 2 {
		t.Fatalf("expected both tasks to observe cancellation, got %d", len(ran))
	}
}

func TestRunPropagatesTaskErrorAndCancelsSiblings(t *testing.T) {
	s := New(testLog())
	boom := errors.New("boom")
	siblingCancelled := make(chan struct{})

	s.Add("failing", func(ctx context.Context) error { return boom })
	s.Add("sibling", func(ctx context.Context) error {
		<-ctx.Done()
		close(siblingCancelled)
		return nil
	})

	err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("expected Run to propagate the failing task's error")
	}

	select {
	case <-siblingCancelled:
	case <-time.After(time.Second):
		t.Fatalf("expected the sibling task's context to be cancelled")
	}
}

func TestRunRecoversPanicAsError(t *testing.T) {
	s := New(testLog())
	s.Add("panics", func(ctx context.Context) error {
		panic("simulated panic")
	})

	err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("expected a recovered panic to surface as an error")
	}
}
