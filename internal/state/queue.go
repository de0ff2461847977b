// Package state implements the single consumer that linearizes every
// world-state mutation, whether it comes from a batch the rollup builder
// just witnessed or a block the chain adapter just confirmed. Grounded on
// the teacher's single-writer consumer loop (core/connection_pool.go),
// generalized from evicting pooled connections to running arbitrary
// closures against the store.
package state

import (
	"github.com/veilchain/aggregator/internal/queue"
	"github.com/veilchain/aggregator/internal/worldstate"
)

// Item is one unit of work on the state queue: a closure that may call
// WorldStateStore put/commit/rollback and may block on I/O. Items never run
// concurrently with each other.
type Item func(store *worldstate.Store) error

// Queue is the state queue's concrete type.
type Queue = queue.Queue[Item]

// NewQueue returns an empty state queue.
func NewQueue() *Queue {
	return queue.New[Item]()
}
