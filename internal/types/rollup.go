package types

// HashPath is the sibling-hash chain from a leaf to the root, ordered leaf
// sibling first, root sibling last. It carries depth+1 entries: the extra
// top entry is consumed by RollupBuilder to read the sub-root at
// rollupRootHeight = log2(rollupSize)+1.
type HashPath [][2][32]byte

// Rollup is the immutable batch witness handed to the ProofGenerator. It is
// built once by RollupBuilder and never mutated afterward.
type Rollup struct {
	RollupID       uint64
	DataStartIndex uint64
	RollupSize     uint32
	TxProofs       [][]byte // per-tx opaque proof blobs, in admission order
	ViewingKeys    [][]byte // flattened, two per tx, in admission order

	RollupRoot  [32]byte
	OldDataRoot [32]byte
	NewDataRoot [32]byte
	OldDataPath HashPath
	NewDataPath HashPath

	OldNullRoot  [32]byte
	NewNullRoots [][32]byte // two per tx: nullifier1 then nullifier2
	OldNullPaths []HashPath
	NewNullPaths []HashPath

	OldRootRoot  [32]byte
	OldRootPaths []HashPath // one per tx, keyed on the low 8 bytes of noteTreeRoot (worldstate.KeyFromBytes)
}

// TxCount returns the number of real (non-padding) transactions the rollup
// carries.
func (r *Rollup) TxCount() int { return len(r.TxProofs) }
