package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Backend is the subset of go-ethereum/accounts/abi/bind.ContractBackend the
// adapter actually calls, so Adapter can be driven by a fake in tests
// instead of a live node. ethclient.Client satisfies it unmodified.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]gethtypes.Log, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *gethtypes.Transaction, isPending bool, err error)
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error)
}
