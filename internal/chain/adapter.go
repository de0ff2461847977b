// Package chain adapts the aggregator to the on-chain rollup processor
// contract: submitting proofs, decoding confirmed rollup blocks back off
// calldata, and answering the read-only status/balance queries the rest of
// the pipeline needs. Grounded on the teacher's crypto/ABI usage
// (core/transactions.go, core/common_structs.go).
package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/types"
)

var rollupProcessedTopic = crypto.Keccak256Hash([]byte("RollupProcessed(uint256)"))

// TxSigner signs an unsigned transaction with the aggregator's submission
// key. Key custody is outside this package's concern; cmd/aggregator wires
// a concrete signer (e.g. a bound keystore account) at startup.
type TxSigner func(tx *gethtypes.Transaction) (*gethtypes.Transaction, error)

// Adapter is the blockchain-facing side of the pipeline (C3).
type Adapter struct {
	backend   Backend
	processor common.Address
	assets    []common.Address // indexed by assetId
	gasLimit  uint64
	sign      TxSigner
	log       *logrus.Entry
}

// Config bundles Adapter's construction parameters.
type Config struct {
	Backend   Backend
	Processor common.Address
	Assets    []common.Address
	GasLimit  uint64
	Sign      TxSigner
}

// New builds an Adapter.
func New(cfg Config, log *logrus.Entry) *Adapter {
	return &Adapter{
		backend:   cfg.Backend,
		processor: cfg.Processor,
		assets:    cfg.Assets,
		gasLimit:  cfg.GasLimit,
		sign:      cfg.Sign,
		log:       log,
	}
}

func (a *Adapter) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := processorABI.Pack(method, args...)
	if err != nil {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "packing "+method, err)
	}
	out, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &a.processor, Data: data}, nil)
	if err != nil {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "calling "+method, err)
	}
	return out, nil
}

// Status reports the processor's view of current chain state.
func (a *Adapter) Status(ctx context.Context) (types.ChainStatus, error) {
	var st types.ChainStatus

	next, err := a.call(ctx, "nextRollupId")
	if err != nil {
		return st, err
	}
	out, err := processorABI.Unpack("nextRollupId", next)
	if err != nil || len(out) != 1 {
		return st, types.Wrap(types.ErrChainSubmitFailed, "unpacking nextRollupId", err)
	}
	st.NextRollupID = out[0].(*big.Int).Uint64()

	size, err := a.call(ctx, "dataSize")
	if err != nil {
		return st, err
	}
	out, err = processorABI.Unpack("dataSize", size)
	if err != nil || len(out) != 1 {
		return st, types.Wrap(types.ErrChainSubmitFailed, "unpacking dataSize", err)
	}
	st.DataSize = out[0].(*big.Int).Uint64()

	for _, field := range []struct {
		method string
		dst    *[32]byte
	}{{"dataRoot", &st.DataRoot}, {"nullRoot", &st.NullRoot}, {"rootRoot", &st.RootRoot}} {
		raw, err := a.call(ctx, field.method)
		if err != nil {
			return st, err
		}
		out, err := processorABI.Unpack(field.method, raw)
		if err != nil || len(out) != 1 {
			return st, types.Wrap(types.ErrChainSubmitFailed, "unpacking "+field.method, err)
		}
		copy(field.dst[:], out[0].([32]byte)[:])
	}
	return st, nil
}

// EscapeStatus reports whether the escape hatch is open.
func (a *Adapter) EscapeStatus(ctx context.Context) (types.EscapeStatus, error) {
	raw, err := a.call(ctx, "getEscapeHatchStatus")
	if err != nil {
		return types.EscapeStatus{}, err
	}
	out, err := processorABI.Unpack("getEscapeHatchStatus", raw)
	if err != nil || len(out) != 2 {
		return types.EscapeStatus{}, types.Wrap(types.ErrChainSubmitFailed, "unpacking getEscapeHatchStatus", err)
	}
	return types.EscapeStatus{
		Open:            out[0].(bool),
		BlocksRemaining: uint32(out[1].(*big.Int).Uint64()),
	}, nil
}

// SubmitRollup packs and submits a rollup: proofBytes carries the
// ProofHeader-prefixed rollup proof, signatures are the compact 65-byte
// signatures of the txs being authorized (marshalled to the on-chain
// 96-byte form before packing), sigIndexes identifies which tx each
// signature authorizes, viewingKeys is the flattened viewing-key blob. A
// nil gasLimit falls back to the Adapter's configured default.
func (a *Adapter) SubmitRollup(ctx context.Context, proofBytes []byte, signatures [][65]byte, sigIndexes []uint64, viewingKeys []byte, gasLimit *uint64) (common.Hash, error) {
	sigIndexArgs := make([]*big.Int, len(sigIndexes))
	for i, idx := range sigIndexes {
		sigIndexArgs[i] = new(big.Int).SetUint64(idx)
	}

	data, err := processorABI.Pack("processRollup", proofBytes, MarshalSignatures(signatures), sigIndexArgs, viewingKeys)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrChainSubmitFailed, "packing processRollup", err)
	}

	limit := a.gasLimit
	if gasLimit != nil {
		limit = *gasLimit
	}

	unsigned := gethtypes.NewTx(&gethtypes.LegacyTx{To: &a.processor, Data: data, Gas: limit})
	signed, err := a.sign(unsigned)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrChainSubmitFailed, "signing processRollup tx", err)
	}
	if err := a.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, types.Wrap(types.ErrChainSubmitFailed, "sending processRollup tx", err)
	}
	return signed.Hash(), nil
}

// BlocksFrom returns the Block decoded from every RollupProcessed log that
// query matches whose rollup id is at or after rollupID, in the order the
// backend returns the logs. BlocksFrom sets only the query's address and
// topic filters; the block range, and with it any confirmation depth, is
// whatever the caller put in query.
func (a *Adapter) BlocksFrom(ctx context.Context, rollupID uint64, query ethereum.FilterQuery) ([]types.Block, error) {
	query.Addresses = []common.Address{a.processor}
	query.Topics = [][]common.Hash{{rollupProcessedTopic}}

	logs, err := a.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "filtering RollupProcessed logs", err)
	}

	var blocks []types.Block
	for _, lg := range logs {
		tx, _, err := a.backend.TransactionByHash(ctx, lg.TxHash)
		if err != nil {
			return nil, types.Wrap(types.ErrChainSubmitFailed, "fetching rollup transaction", err)
		}
		block, err := DecodeBlock(tx, lg.BlockNumber)
		if err != nil {
			return nil, err
		}
		if block.RollupID < rollupID {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// StreamBlocks subscribes to RollupProcessed events and emits each decoded
// Block at or after fromRollupID on out, in the order the chain delivers
// them. It runs until ctx is cancelled or the subscription errors.
func (a *Adapter) StreamBlocks(ctx context.Context, fromRollupID uint64, out chan<- types.Block) error {
	logCh := make(chan gethtypes.Log, 64)
	sub, err := a.backend.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{a.processor},
		Topics:    [][]common.Hash{{rollupProcessedTopic}},
	}, logCh)
	if err != nil {
		return types.Wrap(types.ErrChainSubmitFailed, "subscribing to RollupProcessed", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return types.Wrap(types.ErrChainSubmitFailed, "rollup log subscription failed", err)
		case lg := <-logCh:
			tx, _, err := a.backend.TransactionByHash(ctx, lg.TxHash)
			if err != nil {
				return types.Wrap(types.ErrChainSubmitFailed, "fetching rollup transaction", err)
			}
			block, err := DecodeBlock(tx, lg.BlockNumber)
			if err != nil {
				return err
			}
			if block.RollupID < fromRollupID {
				continue
			}
			select {
			case out <- block:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// AssetBalance returns addr's ERC-20 balance of assetID.
func (a *Adapter) AssetBalance(ctx context.Context, assetID uint32, addr common.Address) (*uint256.Int, error) {
	token, err := a.assetAddr(assetID)
	if err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("balanceOf", addr)
	if err != nil {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "packing balanceOf", err)
	}
	raw, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "calling balanceOf", err)
	}
	out, err := erc20ABI.Unpack("balanceOf", raw)
	if err != nil || len(out) != 1 {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "unpacking balanceOf", err)
	}
	v, overflow := uint256.FromBig(out[0].(*big.Int))
	if overflow {
		return nil, types.New(types.ErrChainSubmitFailed, "balanceOf result overflows u256")
	}
	return v, nil
}

// AssetAllowance returns the amount of assetID spender is allowed to move
// from owner.
func (a *Adapter) AssetAllowance(ctx context.Context, assetID uint32, owner, spender common.Address) (*uint256.Int, error) {
	token, err := a.assetAddr(assetID)
	if err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "packing allowance", err)
	}
	raw, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "calling allowance", err)
	}
	out, err := erc20ABI.Unpack("allowance", raw)
	if err != nil || len(out) != 1 {
		return nil, types.Wrap(types.ErrChainSubmitFailed, "unpacking allowance", err)
	}
	v, overflow := uint256.FromBig(out[0].(*big.Int))
	if overflow {
		return nil, types.New(types.ErrChainSubmitFailed, "allowance result overflows u256")
	}
	return v, nil
}

func (a *Adapter) assetAddr(assetID uint32) (common.Address, error) {
	if int(assetID) >= len(a.assets) {
		return common.Address{}, types.New(types.ErrChainSubmitFailed, fmt.Sprintf("unknown assetId %d", assetID))
	}
	return a.assets[assetID], nil
}
