package worldstate

import (
	"github.com/veilchain/aggregator/internal/types"
)

// Tree identifiers, fixed by convention across the pipeline.
const (
	DataTree = 0
	NullTree = 1
	RootTree = 2
)

// DefaultCacheSize bounds the per-tree LRU of committed internal node
// hashes. Sized generously since entries are 32 bytes each.
const DefaultCacheSize = 4096

// Store is the aggregator's sole view of durable rollup state: the data,
// nullifier and root trees, staged and committed as one unit. Every mutating
// method is safe to call only from the single state-queue goroutine; Store
// does no internal locking, matching the single-writer design the rest of
// the pipeline relies on.
type Store struct {
	trees [3]*tree
}

// Depths configures the bit-width of each tree's leaf index space.
type Depths struct {
	Data int
	Null int
	Root int
}

// DefaultDepths is the reference sizing: a 32-bit data tree (4B note
// commitments) and 64-bit sparse nullifier/root trees.
func DefaultDepths() Depths {
	return Depths{Data: 32, Null: 64, Root: 64}
}

// NewStore builds an empty Store with the given tree depths.
func NewStore(d Depths) *Store {
	return &Store{trees: [3]*tree{
		newTree(d.Data, DefaultCacheSize),
		newTree(d.Null, DefaultCacheSize),
		newTree(d.Root, DefaultCacheSize),
	}}
}

func (s *Store) tree(treeID int) (*tree, error) {
	if treeID < 0 || treeID > 2 {
		return nil, types.New(types.ErrStateIO, "unknown tree id")
	}
	return s.trees[treeID], nil
}

// Size returns one past the largest index ever written to treeID.
func (s *Store) Size(treeID int) (uint64, error) {
	t, err := s.tree(treeID)
	if err != nil {
		return 0, err
	}
	return t.size, nil
}

// Root returns the staged root hash of treeID, reflecting any uncommitted
// puts.
func (s *Store) Root(treeID int) ([32]byte, error) {
	t, err := s.tree(treeID)
	if err != nil {
		return [32]byte{}, err
	}
	return t.root(), nil
}

// Get returns the staged 64-byte leaf at key, or the zero leaf if unset.
func (s *Store) Get(treeID int, key uint64) ([64]byte, error) {
	t, err := s.tree(treeID)
	if err != nil {
		return [64]byte{}, err
	}
	return t.get(key), nil
}

// GetCommitted returns the durably committed leaf at key, ignoring any
// staged-but-uncommitted overlay write. TxAdmission reads through this
// instead of Get so that a rollup batch mid-construction never leaks its
// staged nullifiers or roots into a concurrent admission decision.
func (s *Store) GetCommitted(treeID int, key uint64) ([64]byte, error) {
	t, err := s.tree(treeID)
	if err != nil {
		return [64]byte{}, err
	}
	return t.getCommitted(key), nil
}

// Put stages a leaf write against treeID. It is not visible to Root/Get of
// other Store instances and is discarded on Rollback.
func (s *Store) Put(treeID int, key uint64, value [64]byte) error {
	t, err := s.tree(treeID)
	if err != nil {
		return err
	}
	return t.put(key, value)
}

// GetHashPath returns the depth+1-entry sibling chain from key to the root
// of treeID, reflecting any uncommitted puts.
func (s *Store) GetHashPath(treeID int, key uint64) (types.HashPath, error) {
	t, err := s.tree(treeID)
	if err != nil {
		return nil, err
	}
	return t.path(key), nil
}

// Commit atomically and durably promotes every staged mutation across all
// three trees. There is no partial commit: a single Store.Commit call
// applies to data, nullifier and root trees together.
func (s *Store) Commit() error {
	for _, t := range s.trees {
		t.commit()
	}
	return nil
}

// Rollback discards every staged mutation across all three trees, including
// any size advance they caused. Already-committed state is untouched.
func (s *Store) Rollback() error {
	for _, t := range s.trees {
		t.rollback()
	}
	return nil
}
