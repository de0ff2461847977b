package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/chain"
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/worldstate"
)

type fakeProver struct {
	ok             bool
	proof          []byte
	gotRollup      *types.Rollup
	gotHadDeadline bool
	calls          int
}

func (p *fakeProver) CreateProof(ctx context.Context, rollup *types.Rollup) ([]byte, bool) {
	p.calls++
	p.gotRollup = rollup
	_, p.gotHadDeadline = ctx.Deadline()
	if !p.ok {
		return nil, false
	}
	return p.proof, true
}

type fakeSubmitter struct {
	err       error
	gotProof  []byte
	calls     int
	viewingKs []byte
}

func (s *fakeSubmitter) SubmitRollup(ctx context.Context, proofBytes []byte, signatures [][65]byte, sigIndexes []uint64, viewingKeys []byte, gasLimit *uint64) (common.Hash, error) {
	s.calls++
	s.gotProof = proofBytes
	s.viewingKs = viewingKeys
	return common.Hash{1}, s.err
}

func testLog() *logrus.Entry {
	return logrus.New().WithField("component", "rollup_test")
}

func proofOf(n byte) *types.JoinSplitProof {
	nullifier1 := make([]byte, 32)
	nullifier1[31] = n
	nullifier2 := make([]byte, 32)
	nullifier2[31] = n + 1
	return &types.JoinSplitProof{
		ProofData:   []byte{n},
		AssetID:     0,
		Type:        types.TxTransfer,
		Nullifier1:  nullifier1,
		Nullifier2:  nullifier2,
		ViewingKey1: []byte("vk1"),
		ViewingKey2: []byte("vk2"),
	}
}

func TestRunEmptyBatchIsNoOp(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	p := &fakeProver{ok: true}
	s := &fakeSubmitter{}
	b := New(2, 0, p, s, nil, testLog())

	if err := b.Run(context.Background(), store, nil); err != nil {
		t.Fatalf("Run on an empty batch: %v", err)
	}
	if p.calls != 0 || s.calls != 0 {
		t.Fatalf("expected no prover or chain calls for an empty batch")
	}
}

func TestRunLeavesStoreUnchangedAndSubmits(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	beforeRoot, _ := store.Root(worldstate.DataTree)
	beforeSize, _ := store.Size(worldstate.DataTree)

	p := &fakeProver{ok: true, proof: []byte("zk-proof")}
	s := &fakeSubmitter{}
	b := New(2, 5, p, s, nil, testLog())

	batch := []*types.JoinSplitProof{proofOf(1), proofOf(3)}
	if err := b.Run(context.Background(), store, batch); err != nil {
		t.Fatalf("Run: %v", err)
	}

	afterRoot, _ := store.Root(worldstate.DataTree)
	afterSize, _ := store.Size(worldstate.DataTree)
	if afterRoot != beforeRoot || afterSize != beforeSize {
		t.Fatalf("expected store unchanged after Run: root %x->%x size %d->%d", beforeRoot, afterRoot, beforeSize, afterSize)
	}

	if p.calls != 1 || s.calls != 1 {
		t.Fatalf("expected exactly one prover call and one submit call, got %d/%d", p.calls, s.calls)
	}
	if p.gotRollup.RollupID != 5 {
		t.Fatalf("expected rollupId 5, got %d", p.gotRollup.RollupID)
	}
	if len(string(s.viewingKs)) != len("vk1vk2vk1vk2") {
		t.Fatalf("expected flattened viewing keys for both txs, got %q", s.viewingKs)
	}

	header, _, err := chain.DecodeProofHeader(s.gotProof)
	if err != nil {
		t.Fatalf("decoding submitted proof header: %v", err)
	}
	if header.RollupID != 5 || header.DataStartIndex != 0 || header.RollupSize != 2 {
		t.Fatalf("unexpected header: %+v", header)
	}
	if header.NumDataEntries != 4 {
		t.Fatalf("expected numDataEntries 4 (2*rollupSize), got %d", header.NumDataEntries)
	}
	if len(header.DataEntries) != 4 || len(header.Nullifiers) != 4 {
		t.Fatalf("expected 4 data entries and 4 nullifiers, got %d/%d", len(header.DataEntries), len(header.Nullifiers))
	}
}

func TestRunDetectsDoubleSpendWithinBatch(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	beforeSize, _ := store.Size(worldstate.DataTree)

	shared := proofOf(9)
	reuse := proofOf(9) // shares nullifier1/nullifier2 with shared
	p := &fakeProver{ok: true}
	s := &fakeSubmitter{}
	b := New(4, 0, p, s, nil, testLog())

	err := b.Run(context.Background(), store, []*types.JoinSplitProof{shared, reuse})
	if err == nil {
		t.Fatalf("expected an error for a nullifier reused within one batch")
	}
	if pe, ok := err.(*types.PipelineError); !ok || pe.Kind != types.ErrNullifierExists {
		t.Fatalf("expected ErrNullifierExists, got %v", err)
	}
	if p.calls != 0 || s.calls != 0 {
		t.Fatalf("expected the batch to abort before reaching the prover")
	}

	afterSize, _ := store.Size(worldstate.DataTree)
	if afterSize != beforeSize {
		t.Fatalf("expected the aborted batch to leave the store unchanged")
	}
}

func TestSetProverTimeoutBoundsCreateProofContext(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	p := &fakeProver{ok: true, proof: []byte("zk-proof")}
	s := &fakeSubmitter{}
	b := New(2, 0, p, s, nil, testLog())
	b.SetProverTimeout(10 * time.Millisecond)

	if err := b.Run(context.Background(), store, []*types.JoinSplitProof{proofOf(1)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !p.gotHadDeadline {
		t.Fatalf("expected CreateProof to receive a context with a deadline once SetProverTimeout is set")
	}
}

func TestNoProverTimeoutLeavesContextUnbounded(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	p := &fakeProver{ok: true, proof: []byte("zk-proof")}
	s := &fakeSubmitter{}
	b := New(2, 0, p, s, nil, testLog())

	if err := b.Run(context.Background(), store, []*types.JoinSplitProof{proofOf(1)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.gotHadDeadline {
		t.Fatalf("expected no deadline when SetProverTimeout was never called")
	}
}

func TestRunPropagatesProverRejectionWithoutSubmitting(t *testing.T) {
	store := worldstate.NewStore(worldstate.DefaultDepths())
	p := &fakeProver{ok: false}
	s := &fakeSubmitter{}
	b := New(2, 0, p, s, nil, testLog())

	err := b.Run(context.Background(), store, []*types.JoinSplitProof{proofOf(1)})
	if err == nil {
		t.Fatalf("expected an error when the prover rejects the witness")
	}
	if s.calls != 0 {
		t.Fatalf("expected no chain submission after a prover rejection")
	}
}
