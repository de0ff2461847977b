package chain

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// fakeBackend answers CallContract by method selector, and records
// transactions handed to SendTransaction.
type fakeBackend struct {
	outputs map[string][]byte // method name -> packed return value
	sent    []*gethtypes.Transaction
	logs    []gethtypes.Log
	txs     map[common.Hash]*gethtypes.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{outputs: map[string][]byte{}, txs: map[common.Hash]*gethtypes.Transaction{}}
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	for name, method := range processorABI.Methods {
		if bytes.Equal(call.Data[:4], method.ID) {
			return f.outputs[name], nil
		}
	}
	for name, method := range erc20ABI.Methods {
		if bytes.Equal(call.Data[:4], method.ID) {
			return f.outputs[name], nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return f.logs, nil
}

func (f *fakeBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error) {
	return f.txs[hash], false, nil
}

func (f *fakeBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	return nil, nil
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(bytesDiscard{})
	return l.WithField("component", "chain_test")
}

type bytesDiscard struct{}

func (bytesDiscard) Write(p []byte) (int, error) { return len(p), nil }

func TestStatusUnpacksAllFields(t *testing.T) {
	backend := newFakeBackend()

	nextID, err := processorABI.Methods["nextRollupId"].Outputs.Pack(big.NewInt(42))
	if err != nil {
		t.Fatalf("packing nextRollupId fixture: %v", err)
	}
	backend.outputs["nextRollupId"] = nextID

	size, err := processorABI.Methods["dataSize"].Outputs.Pack(big.NewInt(1024))
	if err != nil {
		t.Fatalf("packing dataSize fixture: %v", err)
	}
	backend.outputs["dataSize"] = size

	var dataRoot, nullRoot, rootRoot [32]byte
	dataRoot[0] = 1
	nullRoot[0] = 2
	rootRoot[0] = 3
	for name, v := range map[string][32]byte{"dataRoot": dataRoot, "nullRoot": nullRoot, "rootRoot": rootRoot} {
		packed, err := processorABI.Methods[name].Outputs.Pack(v)
		if err != nil {
			t.Fatalf("packing %s fixture: %v", name, err)
		}
		backend.outputs[name] = packed
	}

	a := New(Config{Backend: backend, Processor: common.HexToAddress("0x1")}, testLog())
	st, err := a.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.NextRollupID != 42 {
		t.Fatalf("expected nextRollupId 42, got %d", st.NextRollupID)
	}
	if st.DataSize != 1024 {
		t.Fatalf("expected dataSize 1024, got %d", st.DataSize)
	}
	if st.DataRoot != dataRoot || st.NullRoot != nullRoot || st.RootRoot != rootRoot {
		t.Fatalf("expected tree roots to round-trip")
	}
}

func TestEscapeStatusUnpacksBoolAndCount(t *testing.T) {
	backend := newFakeBackend()
	packed, err := processorABI.Methods["getEscapeHatchStatus"].Outputs.Pack(true, big.NewInt(3))
	if err != nil {
		t.Fatalf("packing fixture: %v", err)
	}
	backend.outputs["getEscapeHatchStatus"] = packed

	a := New(Config{Backend: backend, Processor: common.HexToAddress("0x1")}, testLog())
	st, err := a.EscapeStatus(context.Background())
	if err != nil {
		t.Fatalf("EscapeStatus: %v", err)
	}
	if !st.Open || st.BlocksRemaining != 3 {
		t.Fatalf("expected open=true blocksRemaining=3, got %+v", st)
	}
}

func TestSubmitRollupSignsAndSends(t *testing.T) {
	backend := newFakeBackend()
	signCalled := false
	a := New(Config{
		Backend:   backend,
		Processor: common.HexToAddress("0x1"),
		GasLimit:  21000,
		Sign: func(tx *gethtypes.Transaction) (*gethtypes.Transaction, error) {
			signCalled = true
			return tx, nil
		},
	}, testLog())

	var sig [65]byte
	sig[64] = 27
	hash, err := a.SubmitRollup(context.Background(), []byte("proof"), [][65]byte{sig}, []uint64{0}, []byte("vk"), nil)
	if err != nil {
		t.Fatalf("SubmitRollup: %v", err)
	}
	if !signCalled {
		t.Fatalf("expected the signer to be invoked")
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected exactly one transaction sent, got %d", len(backend.sent))
	}
	if hash != backend.sent[0].Hash() {
		t.Fatalf("expected returned hash to match the sent transaction's hash")
	}
}

func TestAssetBalanceRejectsUnknownAsset(t *testing.T) {
	backend := newFakeBackend()
	a := New(Config{Backend: backend, Processor: common.HexToAddress("0x1")}, testLog())
	if _, err := a.AssetBalance(context.Background(), 0, common.HexToAddress("0x2")); err == nil {
		t.Fatalf("expected an error for an assetId with no configured token address")
	}
}

func TestAssetBalanceUnpacksU256(t *testing.T) {
	backend := newFakeBackend()
	packed, err := erc20ABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(500))
	if err != nil {
		t.Fatalf("packing fixture: %v", err)
	}
	backend.outputs["balanceOf"] = packed

	a := New(Config{Backend: backend, Processor: common.HexToAddress("0x1"), Assets: []common.Address{common.HexToAddress("0x9")}}, testLog())
	bal, err := a.AssetBalance(context.Background(), 0, common.HexToAddress("0x2"))
	if err != nil {
		t.Fatalf("AssetBalance: %v", err)
	}
	if bal.Uint64() != 500 {
		t.Fatalf("expected balance 500, got %s", bal.Dec())
	}
}
