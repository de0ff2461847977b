package fees

import (
	"context"
	"math/big"
)

// GasPriceSource is the narrow surface StaticOracle needs to learn the
// live network gas price; *ethclient.Client satisfies it directly.
type GasPriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// StaticOracle implements Oracle with operator-configured per-asset prices
// (cmd/aggregator loads these from config) and a gas price pulled live from
// the chain node, grounded on the teacher's opcode-keyed gas_table.go but
// with asset prices instead of opcode costs, and a live gas feed instead of
// a fixed table entry.
type StaticOracle struct {
	prices map[uint32]*big.Int
	gas    GasPriceSource
}

// NewStaticOracle builds a StaticOracle. Assets absent from prices degrade
// to a zero price, matching Oracle's "0 signals unknown" contract.
func NewStaticOracle(prices map[uint32]*big.Int, gas GasPriceSource) *StaticOracle {
	return &StaticOracle{prices: prices, gas: gas}
}

// AssetPrice returns assetID's configured price, or zero if unconfigured.
func (o *StaticOracle) AssetPrice(ctx context.Context, assetID uint32) (*big.Int, error) {
	if p, ok := o.prices[assetID]; ok {
		return p, nil
	}
	return big.NewInt(0), nil
}

// GasPrice proxies the chain node's current suggested gas price.
func (o *StaticOracle) GasPrice(ctx context.Context) (*big.Int, error) {
	return o.gas.SuggestGasPrice(ctx)
}
