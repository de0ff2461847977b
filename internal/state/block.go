package state

import (
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/worldstate"
)

// BlockItem builds the state-queue item for a confirmed chain block: insert
// its data entries (padding the tree to the block's full, possibly larger,
// footprint), register the resulting data root as known, mark every
// nullifier spent, and commit all three trees as one unit.
func BlockItem(block types.Block) Item {
	return func(store *worldstate.Store) error {
		for i, entry := range block.DataEntries {
			if err := store.Put(worldstate.DataTree, block.DataStartIndex+uint64(i), entry); err != nil {
				return types.Wrap(types.ErrStateIO, "inserting data entry", err)
			}
		}
		if uint32(len(block.DataEntries)) < block.NumDataEntries {
			padIndex := block.DataStartIndex + uint64(block.NumDataEntries) - 1
			if err := store.Put(worldstate.DataTree, padIndex, [64]byte{}); err != nil {
				return types.Wrap(types.ErrStateIO, "padding data tree to block footprint", err)
			}
		}

		newDataRoot, err := store.Root(worldstate.DataTree)
		if err != nil {
			return types.Wrap(types.ErrStateIO, "reading new data root", err)
		}
		rootKey := worldstate.KeyFromBytes(newDataRoot[:])
		if err := store.Put(worldstate.RootTree, rootKey, worldstate.NonEmptyLeaf); err != nil {
			return types.Wrap(types.ErrStateIO, "registering new data root as known", err)
		}

		for _, nullifier := range block.Nullifiers {
			key := worldstate.KeyFromBytes(nullifier)
			if err := store.Put(worldstate.NullTree, key, worldstate.NonEmptyLeaf); err != nil {
				return types.Wrap(types.ErrStateIO, "marking nullifier spent", err)
			}
		}

		if err := store.Commit(); err != nil {
			return types.Wrap(types.ErrStateIO, "committing confirmed block", err)
		}
		return nil
	}
}
