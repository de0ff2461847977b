package state

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/metrics"
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/worldstate"
)

// Serializer runs the single consumer loop over the state queue. No two
// items ever run concurrently, so every WorldStateStore mutation the
// pipeline performs is linearized through this loop.
type Serializer struct {
	queue   *Queue
	store   *worldstate.Store
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// New builds a Serializer.
func New(q *Queue, store *worldstate.Store, m *metrics.Metrics, log *logrus.Entry) *Serializer {
	return &Serializer{queue: q, store: store, metrics: m, log: log}
}

// Run drains the state queue until ctx is cancelled or an item reports a
// fatal WorldStateStore I/O error, at which point the loop halts without
// draining what remains. Non-fatal item errors (a rejected proof, a failed
// chain submission) are logged and the loop continues.
func (s *Serializer) Run(ctx context.Context) error {
	for {
		item, flush, ok := s.queue.Get(ctx)
		if !ok {
			return nil
		}
		if flush {
			continue
		}

		if err := item(s.store); err != nil {
			s.log.WithError(err).Warn("state queue item failed")
			var pe *types.PipelineError
			if errors.As(err, &pe) && pe.Kind == types.ErrStateIO {
				return err
			}
		}
		if s.metrics != nil {
			s.metrics.SetQueueDepth("state", s.queue.Depth())
		}
	}
}
