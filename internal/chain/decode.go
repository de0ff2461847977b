package chain

import (
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/veilchain/aggregator/internal/types"
)

const methodSelectorLen = 4

// DecodeBlock parses a confirmed processRollup transaction into a Block,
// extracting rollupId and rollupSize from the proof's fixed header per the
// adapter's decoding contract. blockNum is the chain block the confirming
// log was found in; the returned Block's Created field is left zero.
func DecodeBlock(tx *gethtypes.Transaction, blockNum uint64) (types.Block, error) {
	data := tx.Data()
	if len(data) < methodSelectorLen {
		return types.Block{}, types.New(types.ErrMalformedProof, "transaction calldata shorter than a method selector")
	}

	args, err := processorABI.Methods["processRollup"].Inputs.Unpack(data[methodSelectorLen:])
	if err != nil || len(args) != 4 {
		return types.Block{}, types.Wrap(types.ErrMalformedProof, "unpacking processRollup calldata", err)
	}
	proofData, ok := args[0].([]byte)
	if !ok {
		return types.Block{}, types.New(types.ErrMalformedProof, "proofData argument was not bytes")
	}
	viewingKeys, ok := args[3].([]byte)
	if !ok {
		return types.Block{}, types.New(types.ErrMalformedProof, "viewingKeys argument was not bytes")
	}

	header, _, err := DecodeProofHeader(proofData)
	if err != nil {
		return types.Block{}, err
	}

	nullifiers := make([][]byte, len(header.Nullifiers))
	for i, n := range header.Nullifiers {
		n := n
		nullifiers[i] = n[:]
	}

	return types.Block{
		BlockNum:        blockNum,
		TxHash:          [32]byte(tx.Hash()),
		RollupProofData: proofData,
		ViewingKeysData: viewingKeys,
		RollupID:        header.RollupID,
		RollupSize:      header.RollupSize,
		DataStartIndex:  header.DataStartIndex,
		NumDataEntries:  header.NumDataEntries,
		DataEntries:     header.DataEntries,
		Nullifiers:      nullifiers,
	}, nil
}
