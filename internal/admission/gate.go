package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/metrics"
	"github.com/veilchain/aggregator/internal/queue"
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/worldstate"
)

// proofVerifier is the narrow surface Gate needs from the join-split
// circuit verifier; *verifier.Verifier satisfies it directly.
type proofVerifier interface {
	Verify(proof []byte) (bool, error)
}

// Gate implements TxAdmission: parse, check nullifiers and note root against
// committed world state, verify the circuit proof, and enqueue. Every read
// here is against committed state only; Gate never stages a mutation, so no
// admission can leave residue for the next one to observe.
type Gate struct {
	store   *worldstate.Store
	verify  proofVerifier
	txQueue *queue.Queue[*types.JoinSplitProof]
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// New builds a Gate.
func New(store *worldstate.Store, verify proofVerifier, txQueue *queue.Queue[*types.JoinSplitProof], m *metrics.Metrics, log *logrus.Entry) *Gate {
	return &Gate{store: store, verify: verify, txQueue: txQueue, metrics: m, log: log}
}

var zeroLeaf [64]byte

// Admit runs the five-step admission flow against a raw client submission
// and, on acceptance, pushes the parsed proof onto the tx queue.
func (g *Gate) Admit(ctx context.Context, raw []byte) types.AdmissionResult {
	tx, err := ParseProof(raw)
	if err != nil {
		return g.reject(nil, err)
	}

	for i, nullifier := range [][]byte{tx.Nullifier1, tx.Nullifier2} {
		key := worldstate.KeyFromBytes(nullifier)
		leaf, err := g.store.GetCommitted(worldstate.NullTree, key)
		if err != nil {
			return g.reject(tx, types.Wrap(types.ErrStateIO, "reading nullifier tree", err))
		}
		if leaf != zeroLeaf {
			return g.reject(tx, types.New(types.ErrNullifierExists, fmt.Sprintf("nullifier %d already exists", i+1)))
		}
	}

	rootKey := worldstate.KeyFromBytes(tx.NoteTreeRoot[:])
	rootLeaf, err := g.store.GetCommitted(worldstate.RootTree, rootKey)
	if err != nil {
		return g.reject(tx, types.Wrap(types.ErrStateIO, "reading root tree", err))
	}
	if rootLeaf == zeroLeaf {
		return g.reject(tx, types.New(types.ErrUnknownNoteRoot, "merkle root does not exist"))
	}

	ok, err := g.verify.Verify(tx.ProofData)
	if err != nil {
		return g.reject(tx, types.Wrap(types.ErrVerifierFailed, "proof verification failed", err))
	}
	if !ok {
		return g.reject(tx, types.New(types.ErrVerifierFailed, "proof verification failed"))
	}

	tx.Received = time.Now()
	g.txQueue.Push(tx)
	g.metrics.SetQueueDepth("tx", g.txQueue.Depth())
	return types.AdmissionResult{TxID: tx.TxID, Accepted: true}
}

func (g *Gate) reject(tx *types.JoinSplitProof, err error) types.AdmissionResult {
	var kind types.ErrKind
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		kind = pe.Kind
	}
	g.metrics.RecordAdmissionRejected(kind.String())

	var txID []byte
	if tx != nil {
		txID = tx.TxID
	}
	g.log.WithError(err).WithField("reason", kind.String()).Warn("rejected proof at admission")
	return types.AdmissionResult{TxID: txID, Accepted: false, Error: err.Error()}
}
