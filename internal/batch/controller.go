// Package batch implements BatchController (C7): the timing/size policy
// that drains the tx queue into rollup-sized batches and hands each one to
// the state queue for RollupBuilder to witness. Grounded on the teacher's
// connection-pool idle/size eviction loop (core/connection_pool.go),
// generalized from evicting idle connections to closing a batch on a size
// cap or an idle-since deadline.
package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/metrics"
	"github.com/veilchain/aggregator/internal/queue"
	"github.com/veilchain/aggregator/internal/state"
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/worldstate"
)

// runner is the narrow surface Controller needs from RollupBuilder;
// *rollup.Builder satisfies it directly.
type runner interface {
	Run(ctx context.Context, store *worldstate.Store, batch []*types.JoinSplitProof) error
}

// Controller implements BatchController.
type Controller struct {
	rollupSize        int
	maxRollupWaitTime time.Duration
	minRollupInterval time.Duration

	txQueue    *queue.Queue[*types.JoinSplitProof]
	stateQueue *state.Queue
	builder    runner

	metrics *metrics.Metrics
	log     *logrus.Entry

	paused       atomic.Bool
	resumeSignal chan struct{}
}

// New builds a Controller. minRollupInterval must not exceed
// maxRollupWaitTime; violating that is a startup configuration error.
func New(rollupSize int, maxRollupWaitTime, minRollupInterval time.Duration,
	txQueue *queue.Queue[*types.JoinSplitProof], stateQueue *state.Queue, b runner,
	m *metrics.Metrics, log *logrus.Entry) (*Controller, error) {
	if minRollupInterval > maxRollupWaitTime {
		return nil, types.New(types.ErrConfig, "minRollupInterval must not exceed maxRollupWaitTime")
	}
	return &Controller{
		rollupSize:        rollupSize,
		maxRollupWaitTime: maxRollupWaitTime,
		minRollupInterval: minRollupInterval,
		txQueue:           txQueue,
		stateQueue:        stateQueue,
		builder:           b,
		metrics:           m,
		log:               log,
		resumeSignal:      make(chan struct{}, 1),
	}, nil
}

// Pause stops the controller from pulling further txs off the queue until
// Resume is called. Run checks the pause flag before each Get, so a Get
// already waiting when Pause is called still delivers one item, which is
// processed as usual. Work already dispatched to the state queue is
// unaffected. An operational affordance surfaced through the control
// socket, not part of the rollup-soundness core.
func (c *Controller) Pause() { c.paused.Store(true) }

// Resume reverses Pause.
func (c *Controller) Resume() {
	if c.paused.CompareAndSwap(true, false) {
		select {
		case c.resumeSignal <- struct{}{}:
		default:
		}
	}
}

// Paused reports the controller's current pause state.
func (c *Controller) Paused() bool { return c.paused.Load() }

// Run drains the tx queue, closing a batch when it fills to rollupSize, when
// maxRollupWaitTime has elapsed since the last admitted tx, or when a flush
// sentinel arrives. Each closed batch is handed to the state queue as a
// closure that runs RollupBuilder against the live store; Run then
// throttles for minRollupInterval before pulling the next tx.
func (c *Controller) Run(ctx context.Context) error {
	var pending []*types.JoinSplitProof
	lastTxReceivedAt := time.Now()

	timer := time.AfterFunc(c.maxRollupWaitTime, func() { c.txQueue.Flush() })
	defer timer.Stop()

	for {
		for c.paused.Load() {
			select {
			case <-c.resumeSignal:
			case <-ctx.Done():
				return nil
			}
		}

		tx, flush, ok := c.txQueue.Get(ctx)
		if !ok {
			return nil
		}
		if !flush {
			pending = append(pending, tx)
			lastTxReceivedAt = time.Now()
		}
		timer.Reset(c.maxRollupWaitTime)

		shouldClose := len(pending) > 0 &&
			(flush || len(pending) == c.rollupSize || time.Since(lastTxReceivedAt) >= c.maxRollupWaitTime)

		if c.metrics != nil {
			c.metrics.SetQueueDepth("tx", c.txQueue.Depth())
		}

		if !shouldClose {
			continue
		}

		batch := pending
		pending = nil
		c.log.WithField("batchSize", len(batch)).Info("closing batch")

		builder := c.builder
		c.stateQueue.Push(state.Item(func(store *worldstate.Store) error {
			return builder.Run(ctx, store, batch)
		}))

		select {
		case <-time.After(c.minRollupInterval):
		case <-ctx.Done():
			return nil
		}
	}
}
