// Package rollup implements RollupBuilder (C8): given an admitted batch, it
// stages every tx's effect against WorldStateStore to capture a witness
// (paths, roots, the soundness-checking nullifier re-reads), rolls the
// staging back unconditionally, and hands the witness to the external
// prover. Grounded on the teacher's transaction-batch assembly
// (core/transactions.go), adapted from building an on-chain transaction to
// building an off-chain zero-knowledge witness.
package rollup

import (
	"context"
	"math/bits"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/chain"
	"github.com/veilchain/aggregator/internal/metrics"
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/worldstate"
)

var zeroLeaf [64]byte

// prover is the narrow surface Builder needs from the ProofGenerator;
// *proofgen.Client satisfies it directly.
type prover interface {
	CreateProof(ctx context.Context, rollup *types.Rollup) (proof []byte, ok bool)
}

// submitter is the narrow surface Builder needs from the blockchain
// adapter; *chain.Adapter satisfies it directly.
type submitter interface {
	SubmitRollup(ctx context.Context, proofBytes []byte, signatures [][65]byte, sigIndexes []uint64, viewingKeys []byte, gasLimit *uint64) (common.Hash, error)
}

// Builder owns the monotonic rollupId counter and the downstream prover and
// chain adapter a successful build is submitted through. It runs with the
// same single-writer guarantee as WorldStateStore: one Run call at a time.
type Builder struct {
	rollupSize    uint32
	nextRollupID  atomic.Uint64
	proverTimeout time.Duration

	prover prover
	chain  submitter

	metrics *metrics.Metrics
	log     *logrus.Entry
}

// SetProverTimeout bounds how long Run waits on the external prover for a
// single CreateProof call. Zero (the default) means no deadline beyond the
// caller's own ctx.
func (b *Builder) SetProverTimeout(d time.Duration) { b.proverTimeout = d }

// New builds a Builder. firstRollupID seeds the monotonic counter, typically
// from the chain adapter's reported nextRollupId at startup.
func New(rollupSize uint32, firstRollupID uint64, p prover, chainAdapter submitter, m *metrics.Metrics, log *logrus.Entry) *Builder {
	b := &Builder{
		rollupSize: rollupSize,
		prover:     p,
		chain:      chainAdapter,
		metrics:    m,
		log:        log,
	}
	b.nextRollupID.Store(firstRollupID)
	return b
}

// NextRollupID reports the rollup id the next successful Run will submit.
// Safe to call concurrently with Run; surfaced through the control socket.
func (b *Builder) NextRollupID() uint64 { return b.nextRollupID.Load() }

func (b *Builder) abort(store *worldstate.Store, err error) error {
	if rollbackErr := store.Rollback(); rollbackErr != nil {
		return types.Wrap(types.ErrStateIO, "rollback after failed rollup build", rollbackErr)
	}
	return err
}

// Run executes the six-step snapshot/apply/rollback algorithm for one
// batch, submitting the resulting proof on success. A nil/empty batch is a
// no-op. Every staged mutation this call makes is rolled back before it
// returns, win or lose; only block confirmation ever commits real state.
func (b *Builder) Run(ctx context.Context, store *worldstate.Store, batch []*types.JoinSplitProof) error {
	if len(batch) == 0 {
		return nil
	}

	if b.metrics != nil {
		timer := prometheus.NewTimer(b.metrics.RollupBuildDurationSecs)
		defer timer.ObserveDuration()
	}

	dataStartIndex, err := store.Size(worldstate.DataTree)
	if err != nil {
		return b.abort(store, types.Wrap(types.ErrStateIO, "reading data tree size", err))
	}
	oldDataRoot, err := store.Root(worldstate.DataTree)
	if err != nil {
		return b.abort(store, types.Wrap(types.ErrStateIO, "reading old data root", err))
	}
	oldDataPath, err := store.GetHashPath(worldstate.DataTree, dataStartIndex)
	if err != nil {
		return b.abort(store, types.Wrap(types.ErrStateIO, "reading old data path", err))
	}
	oldNullRoot, err := store.Root(worldstate.NullTree)
	if err != nil {
		return b.abort(store, types.Wrap(types.ErrStateIO, "reading old nullifier root", err))
	}
	oldRootRoot, err := store.Root(worldstate.RootTree)
	if err != nil {
		return b.abort(store, types.Wrap(types.ErrStateIO, "reading old root-tree root", err))
	}

	rollup := &types.Rollup{
		DataStartIndex: dataStartIndex,
		RollupSize:     b.rollupSize,
		OldDataRoot:    oldDataRoot,
		OldDataPath:    oldDataPath,
		OldNullRoot:    oldNullRoot,
		OldRootRoot:    oldRootRoot,
	}

	next := dataStartIndex
	var dataEntries [][64]byte
	var nullifiers [][32]byte

	for _, tx := range batch {
		if err := store.Put(worldstate.DataTree, next, tx.NewNote1); err != nil {
			return b.abort(store, types.Wrap(types.ErrStateIO, "staging new note 1", err))
		}
		dataEntries = append(dataEntries, tx.NewNote1)
		next++
		if err := store.Put(worldstate.DataTree, next, tx.NewNote2); err != nil {
			return b.abort(store, types.Wrap(types.ErrStateIO, "staging new note 2", err))
		}
		dataEntries = append(dataEntries, tx.NewNote2)
		next++

		rollup.TxProofs = append(rollup.TxProofs, tx.ProofData)
		rollup.ViewingKeys = append(rollup.ViewingKeys, tx.ViewingKey1, tx.ViewingKey2)

		for _, nullifier := range [][]byte{tx.Nullifier1, tx.Nullifier2} {
			key := worldstate.KeyFromBytes(nullifier)

			existing, err := store.Get(worldstate.NullTree, key)
			if err != nil {
				return b.abort(store, types.Wrap(types.ErrStateIO, "reading nullifier tree", err))
			}
			if existing != zeroLeaf {
				return b.abort(store, types.New(types.ErrNullifierExists, "nullifier already spent within this batch"))
			}

			oldPath, err := store.GetHashPath(worldstate.NullTree, key)
			if err != nil {
				return b.abort(store, types.Wrap(types.ErrStateIO, "reading old nullifier path", err))
			}
			if err := store.Put(worldstate.NullTree, key, worldstate.NonEmptyLeaf); err != nil {
				return b.abort(store, types.Wrap(types.ErrStateIO, "staging nullifier", err))
			}
			newRoot, err := store.Root(worldstate.NullTree)
			if err != nil {
				return b.abort(store, types.Wrap(types.ErrStateIO, "reading new nullifier root", err))
			}
			newPath, err := store.GetHashPath(worldstate.NullTree, key)
			if err != nil {
				return b.abort(store, types.Wrap(types.ErrStateIO, "reading new nullifier path", err))
			}

			rollup.OldNullPaths = append(rollup.OldNullPaths, oldPath)
			rollup.NewNullRoots = append(rollup.NewNullRoots, newRoot)
			rollup.NewNullPaths = append(rollup.NewNullPaths, newPath)

			var n [32]byte
			copy(n[:], nullifier)
			nullifiers = append(nullifiers, n)
		}

		rootKey := worldstate.KeyFromBytes(tx.NoteTreeRoot[:])
		oldRootPath, err := store.GetHashPath(worldstate.RootTree, rootKey)
		if err != nil {
			return b.abort(store, types.Wrap(types.ErrStateIO, "reading old root-tree path", err))
		}
		rollup.OldRootPaths = append(rollup.OldRootPaths, oldRootPath)
	}

	newDataPath, err := store.GetHashPath(worldstate.DataTree, dataStartIndex)
	if err != nil {
		return b.abort(store, types.Wrap(types.ErrStateIO, "reading new data path", err))
	}
	newDataRoot, err := store.Root(worldstate.DataTree)
	if err != nil {
		return b.abort(store, types.Wrap(types.ErrStateIO, "reading new data root", err))
	}

	rollupRootHeight := bits.Len32(b.rollupSize) // log2(rollupSize)+1, since rollupSize is a power of two
	rollupRootIndex := (dataStartIndex / (2 * uint64(b.rollupSize))) % 2
	rollup.NewDataPath = newDataPath
	rollup.NewDataRoot = newDataRoot
	rollup.RollupRoot = newDataPath[rollupRootHeight][rollupRootIndex]
	rollup.RollupID = b.nextRollupID.Load()

	// Step 5: discard every staged mutation. Only a confirmed block ever
	// commits; this call produced a witness, nothing more.
	if err := store.Rollback(); err != nil {
		return types.Wrap(types.ErrStateIO, "rollback after rollup build", err)
	}

	proveCtx := ctx
	if b.proverTimeout > 0 {
		var cancel context.CancelFunc
		proveCtx, cancel = context.WithTimeout(ctx, b.proverTimeout)
		defer cancel()
	}
	proof, ok := b.prover.CreateProof(proveCtx, rollup)
	if !ok {
		return types.New(types.ErrProofGenFailed, "prover rejected rollup witness")
	}

	header := chain.ProofHeader{
		RollupID:       rollup.RollupID,
		DataStartIndex: rollup.DataStartIndex,
		RollupSize:     rollup.RollupSize,
		NumDataEntries: 2 * b.rollupSize,
		DataEntries:    dataEntries,
		Nullifiers:     nullifiers,
	}
	proofBytes := append(chain.EncodeProofHeader(header), proof...)

	var viewingKeys []byte
	for _, vk := range rollup.ViewingKeys {
		viewingKeys = append(viewingKeys, vk...)
	}

	if _, err := b.chain.SubmitRollup(ctx, proofBytes, nil, nil, viewingKeys, nil); err != nil {
		return err
	}

	b.nextRollupID.Add(1)
	if b.metrics != nil {
		b.metrics.BatchesSubmittedTotal.Inc()
	}
	b.log.WithField("rollupId", rollup.RollupID).Info("submitted rollup")
	return nil
}
