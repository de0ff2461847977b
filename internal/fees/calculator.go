// Package fees implements FeeCalculator: converting gas costs into
// per-asset fee quotes via a price oracle, and scoring a batch's fee
// surplus against its minimum. Grounded on the teacher's gas_table.go for
// the shape of a gas-constant table, adapted to a continuous oracle-priced
// model instead of a static table.
package fees

import (
	"context"
	"math"
	"math/big"

	"github.com/veilchain/aggregator/internal/types"
)

// Oracle is the external PriceTracker. A zero AssetPrice means "unknown";
// callers degrade the corresponding fee to zero rather than fail.
type Oracle interface {
	AssetPrice(ctx context.Context, assetID uint32) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// AssetParams configures one supported asset's fee model.
type AssetParams struct {
	AssetID                  uint32
	Decimals                 uint8
	GasConstants             [7]uint64 // indexed by position in types.TxTypeOrder
	BaseTxGas                uint64
	MaxFeeGasPrice           uint64 // 0 means uncapped
	FeeGasPriceMultiplierPct uint64 // multiplier scaled by 100, e.g. 100 == 1.00x
	FeeFree                  bool
}

// BaseFeeQuote is one (fee, time) point on the fee/time tradeoff curve.
type BaseFeeQuote struct {
	Fee      *big.Int
	TimeSecs int
}

// FeeQuote is the full quote surfaced to a client for one asset.
type FeeQuote struct {
	FeeConstants  [7]*big.Int
	BaseFeeQuotes []BaseFeeQuote
}

// Calculator implements FeeCalculator (C5).
type Calculator struct {
	assets              map[uint32]AssetParams
	nativeAssetID       uint32
	txsPerRollup        int
	publishIntervalSecs int
	surplusRatios       []float64
	oracle              Oracle
}

// Config bundles Calculator's construction parameters, mirroring §4.5.
type Config struct {
	Assets              []AssetParams
	NativeAssetID       uint32
	TxsPerRollup        int
	PublishIntervalSecs int
	Oracle              Oracle
}

// DefaultSurplusRatios is the fixed curve spec.md names explicitly.
var DefaultSurplusRatios = []float64{1, 0.9, 0.5, 0}

// New builds a Calculator.
func New(cfg Config) *Calculator {
	assets := make(map[uint32]AssetParams, len(cfg.Assets))
	for _, a := range cfg.Assets {
		assets[a.AssetID] = a
	}
	return &Calculator{
		assets:              assets,
		nativeAssetID:       cfg.NativeAssetID,
		txsPerRollup:        cfg.TxsPerRollup,
		publishIntervalSecs: cfg.PublishIntervalSecs,
		surplusRatios:       DefaultSurplusRatios,
		oracle:              cfg.Oracle,
	}
}

func txTypeIndex(t types.TxType) int {
	for i, ord := range types.TxTypeOrder {
		if ord == t {
			return i
		}
	}
	return -1
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// apply implements apply(v) = min(v·maxFeeGasPrice, v·gasPrice·multiplierPct/100),
// treating a zero MaxFeeGasPrice as "uncapped" rather than literally zero.
func apply(v *big.Int, params AssetParams, gasPrice *big.Int) *big.Int {
	byMultiplier := new(big.Int).Mul(v, gasPrice)
	byMultiplier.Mul(byMultiplier, big.NewInt(int64(params.FeeGasPriceMultiplierPct)))
	byMultiplier.Quo(byMultiplier, big.NewInt(100))

	if params.MaxFeeGasPrice == 0 {
		return byMultiplier
	}
	byMax := new(big.Int).Mul(v, big.NewInt(int64(params.MaxFeeGasPrice)))
	if byMax.Cmp(byMultiplier) < 0 {
		return byMax
	}
	return byMultiplier
}

// ToAssetPrice converts a gas amount into assetID's fee units.
func (c *Calculator) ToAssetPrice(ctx context.Context, assetID uint32, gas uint64) (*big.Int, error) {
	params, ok := c.assets[assetID]
	if !ok {
		return nil, types.New(types.ErrConfig, "unknown assetId in fee calculation")
	}
	price, err := c.oracle.AssetPrice(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if price.Sign() == 0 {
		return big.NewInt(0), nil
	}
	gasPrice, err := c.oracle.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	v := new(big.Int).Mul(big.NewInt(int64(gas)), pow10(params.Decimals))
	applied := apply(v, params, gasPrice)
	return new(big.Int).Quo(applied, price), nil
}

// ToEthPrice back-converts a fee-unit amount to native-asset units. It is
// the identity when assetID is the native asset.
func (c *Calculator) ToEthPrice(ctx context.Context, assetID uint32, v *big.Int) (*big.Int, error) {
	if assetID == c.nativeAssetID {
		return new(big.Int).Set(v), nil
	}
	params, ok := c.assets[assetID]
	if !ok {
		return nil, types.New(types.ErrConfig, "unknown assetId in fee calculation")
	}
	price, err := c.oracle.AssetPrice(ctx, assetID)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(v, price)
	return out.Quo(out, pow10(params.Decimals)), nil
}

// FeeConstant returns the additive per-type fee component, zero for ACCOUNT
// proofs or fee-free assets.
func (c *Calculator) FeeConstant(ctx context.Context, assetID uint32, txType types.TxType) (*big.Int, error) {
	params, ok := c.assets[assetID]
	if !ok {
		return nil, types.New(types.ErrConfig, "unknown assetId in fee calculation")
	}
	if txType == types.TxAccount || params.FeeFree {
		return big.NewInt(0), nil
	}
	idx := txTypeIndex(txType)
	if idx < 0 {
		return nil, types.New(types.ErrConfig, "unknown tx type in fee calculation")
	}
	return c.ToAssetPrice(ctx, assetID, params.GasConstants[idx])
}

// MinTxFee is the minimum fee a client must offer for assetID/txType.
func (c *Calculator) MinTxFee(ctx context.Context, assetID uint32, txType types.TxType) (*big.Int, error) {
	params, ok := c.assets[assetID]
	if !ok {
		return nil, types.New(types.ErrConfig, "unknown assetId in fee calculation")
	}
	if txType == types.TxAccount || params.FeeFree {
		return big.NewInt(0), nil
	}
	feeConstant, err := c.FeeConstant(ctx, assetID, txType)
	if err != nil {
		return nil, err
	}
	baseFee, err := c.ToAssetPrice(ctx, assetID, params.BaseTxGas)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(feeConstant, baseFee), nil
}

// FeeQuotes builds the full client-facing fee quote for assetID.
func (c *Calculator) FeeQuotes(ctx context.Context, assetID uint32) (FeeQuote, error) {
	params, ok := c.assets[assetID]
	if !ok {
		return FeeQuote{}, types.New(types.ErrConfig, "unknown assetId in fee calculation")
	}

	var quote FeeQuote
	for i, txType := range types.TxTypeOrder {
		fc, err := c.FeeConstant(ctx, assetID, txType)
		if err != nil {
			return FeeQuote{}, err
		}
		quote.FeeConstants[i] = fc
	}

	baseFee, err := c.ToAssetPrice(ctx, assetID, params.BaseTxGas)
	if err != nil {
		return FeeQuote{}, err
	}

	for _, ratio := range c.surplusRatios {
		multiplier := 1 + int(math.Round(float64(c.txsPerRollup)*(1-ratio)))
		fee := new(big.Int).Mul(baseFee, big.NewInt(int64(multiplier)))

		timeSecs := int(float64(c.publishIntervalSecs) * ratio)
		if timeSecs < 300 {
			timeSecs = 300
		}
		quote.BaseFeeQuotes = append(quote.BaseFeeQuotes, BaseFeeQuote{Fee: fee, TimeSecs: timeSecs})
	}
	return quote, nil
}

// SurplusRatio scores how far a batch's offered fees exceed the minimum,
// in native-asset units, as 1 minus the summed surplus over
// baseFee·txsPerRollup, clamped to [0, 1]: a higher surplus gives a lower
// score. An empty batch scores 1 (no surplus). ACCOUNT
// proofs are fee-free and excluded from the sum. DEFI_DEPOSIT/DEFI_CLAIM
// txs are scored against their AssetID field, which callers set to the
// bridge's input asset.
func (c *Calculator) SurplusRatio(ctx context.Context, txs []*types.JoinSplitProof) (float64, error) {
	if len(txs) == 0 {
		return 1, nil
	}

	nativeParams, ok := c.assets[c.nativeAssetID]
	if !ok {
		return 0, types.New(types.ErrConfig, "native asset not configured for fee calculation")
	}
	nativeBaseFee, err := c.ToAssetPrice(ctx, c.nativeAssetID, nativeParams.BaseTxGas)
	if err != nil {
		return 0, err
	}

	sum := big.NewInt(0)
	for _, tx := range txs {
		if tx.Type == types.TxAccount {
			continue
		}
		params, ok := c.assets[tx.AssetID]
		if !ok {
			return 0, types.New(types.ErrConfig, "unknown assetId in batch")
		}
		if params.FeeFree {
			continue
		}
		minFee, err := c.MinTxFee(ctx, tx.AssetID, tx.Type)
		if err != nil {
			return 0, err
		}
		diff := new(big.Int).Sub(new(big.Int).SetUint64(tx.TxFee), minFee)
		diffNative, err := c.ToEthPrice(ctx, tx.AssetID, diff)
		if err != nil {
			return 0, err
		}
		sum.Add(sum, diffNative)
	}

	denom := new(big.Int).Mul(nativeBaseFee, big.NewInt(int64(c.txsPerRollup)))
	if denom.Sign() == 0 {
		return 1, nil
	}

	ratio := new(big.Rat).SetFrac(sum, denom)
	score := new(big.Rat).Sub(big.NewRat(1, 1), ratio)

	f, _ := score.Float64()
	if f < 0 {
		return 0, nil
	}
	if f > 1 {
		return 1, nil
	}
	return f, nil
}
