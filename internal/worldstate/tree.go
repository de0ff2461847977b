// Package worldstate implements the three append/sparse Merkle trees backing
// the aggregator's view of chain state: the data tree (note commitments,
// append-only), the nullifier tree (spent-note markers, sparse) and the root
// tree (historical data-tree roots, sparse). The trees share one overlay/
// commit/rollback discipline so a RollupBuilder can stage a whole batch
// across all three and discard it atomically on failure.
//
// Keys are truncated to 64 bits. A production backend would key the sparse
// trees on the full field element; this in-memory reference store trades
// that range for plain uint64 arithmetic, which is enough to exercise every
// invariant the aggregator cares about (monotonic size, spent-never-clears,
// zero-default reads, stable hash paths).
package worldstate

import (
	"crypto/sha256"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/veilchain/aggregator/internal/types"
)

// leaf is the raw 64-byte value stored at a tree index.
type leaf = [64]byte

type cacheKey struct {
	level  int
	prefix uint64
}

// tree is a fixed-depth Merkle tree over uint64-indexed 64-byte leaves,
// defaulting unset leaves to the all-zero value. Mutations are staged in an
// overlay map until Commit folds them into the committed set, or Rollback
// discards them.
type tree struct {
	depth int // leaf index width in bits

	committed     map[uint64]leaf
	committedKeys []uint64 // kept sorted ascending

	overlay     map[uint64]leaf
	overlayKeys []uint64 // insertion order, small

	size uint64 // high-water mark: one past the largest index ever written

	zeroHash [][32]byte // zeroHash[i] is the hash of an all-zero subtree of height i
	cache    *lru.Cache[cacheKey, [32]byte]
}

func newTree(depth, cacheSize int) *tree {
	t := &tree{
		depth:     depth,
		committed: make(map[uint64]leaf),
		overlay:   make(map[uint64]leaf),
		zeroHash:  make([][32]byte, depth+1),
	}
	t.zeroHash[0] = sha256.Sum256(make([]byte, 64))
	for i := 1; i <= depth; i++ {
		t.zeroHash[i] = hashPair(t.zeroHash[i-1], t.zeroHash[i-1])
	}
	c, err := lru.New[cacheKey, [32]byte](cacheSize)
	if err != nil {
		// only returns an error for a non-positive size, which callers never pass
		panic(err)
	}
	t.cache = c
	return t
}

func hashPair(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashLeaf(v leaf) [32]byte {
	return sha256.Sum256(v[:])
}

func (t *tree) maxIndex() uint64 {
	if t.depth >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(t.depth)) - 1
}

// get returns the staged value at index, or the zero leaf if unset.
func (t *tree) get(index uint64) leaf {
	if v, ok := t.overlay[index]; ok {
		return v
	}
	if v, ok := t.committed[index]; ok {
		return v
	}
	return leaf{}
}

// getCommitted returns the durably committed value at index, ignoring any
// staged overlay mutation.
func (t *tree) getCommitted(index uint64) leaf {
	if v, ok := t.committed[index]; ok {
		return v
	}
	return leaf{}
}

// put stages a leaf write. It does not touch committed state until Commit.
func (t *tree) put(index uint64, value leaf) error {
	if index > t.maxIndex() {
		return types.Wrap(types.ErrStateIO, "tree index out of range", nil)
	}
	if _, exists := t.overlay[index]; !exists {
		t.overlayKeys = append(t.overlayKeys, index)
	}
	t.overlay[index] = value
	if index+1 > t.size {
		t.size = index + 1
	}
	return nil
}

// commit folds the overlay into the committed set and purges the cache
// entries along every committed key's ancestor path, since those are now
// stale.
func (t *tree) commit() {
	for _, idx := range t.overlayKeys {
		if _, already := t.committed[idx]; !already {
			t.committedKeys = insertSorted(t.committedKeys, idx)
		}
		t.committed[idx] = t.overlay[idx]
		t.invalidateAncestors(idx)
	}
	t.overlay = make(map[uint64]leaf)
	t.overlayKeys = nil
}

// rollback discards all staged mutations. Size rolls back to the committed
// high-water mark too, since it was only ever advanced by staged puts.
func (t *tree) rollback() {
	t.overlay = make(map[uint64]leaf)
	t.overlayKeys = nil
	var committedSize uint64
	for _, idx := range t.committedKeys {
		if idx+1 > committedSize {
			committedSize = idx + 1
		}
	}
	t.size = committedSize
}

func (t *tree) invalidateAncestors(index uint64) {
	prefix := index
	for level := 0; level <= t.depth; level++ {
		t.cache.Remove(cacheKey{level, prefix})
		prefix >>= 1
	}
}

func insertSorted(keys []uint64, v uint64) []uint64 {
	i := sort.Search(len(keys), func(i int) bool { return keys[i] >= v })
	if i < len(keys) && keys[i] == v {
		return keys
	}
	keys = append(keys, 0)
	copy(keys[i+1:], keys[i:])
	keys[i] = v
	return keys
}

// rangeHasKey reports whether any key in sorted keys falls in
// [prefix<<level, (prefix+1)<<level).
func rangeHasKey(keys []uint64, level int, prefix uint64) bool {
	lo := prefix << uint(level)
	var hi uint64
	if level >= 64 {
		hi = ^uint64(0)
	} else {
		hi = (prefix + 1) << uint(level)
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i] >= lo })
	return i < len(keys) && keys[i] < hi
}

// committedNodeHash computes the hash of the committed-only subtree rooted
// at (level, prefix), using the sorted key index to prune empty subtrees to
// their precomputed zero hash, and the LRU cache to avoid recomputation
// across queries between commits.
func (t *tree) committedNodeHash(level int, prefix uint64) [32]byte {
	if !rangeHasKey(t.committedKeys, level, prefix) {
		return t.zeroHash[level]
	}
	if level == 0 {
		return hashLeaf(t.committed[prefix])
	}
	if v, ok := t.cache.Get(cacheKey{level, prefix}); ok {
		return v
	}
	left := t.committedNodeHash(level-1, prefix*2)
	right := t.committedNodeHash(level-1, prefix*2+1)
	h := hashPair(left, right)
	t.cache.Add(cacheKey{level, prefix}, h)
	return h
}

// overlayKeysInRange returns the staged keys under (level, prefix); small
// and unsorted, so a linear scan is cheapest.
func (t *tree) overlayKeysInRange(level int, prefix uint64) []uint64 {
	var out []uint64
	for _, k := range t.overlayKeys {
		if shiftedEquals(k, level, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func shiftedEquals(key uint64, level int, prefix uint64) bool {
	if level >= 64 {
		return prefix == 0
	}
	return key>>uint(level) == prefix
}

// nodeHash computes the staged (overlay-aware) hash of the subtree rooted
// at (level, prefix).
func (t *tree) nodeHash(level int, prefix uint64) [32]byte {
	staged := t.overlayKeysInRange(level, prefix)
	if len(staged) == 0 {
		return t.committedNodeHash(level, prefix)
	}
	if level == 0 {
		return hashLeaf(t.overlay[prefix])
	}
	left := t.nodeHash(level-1, prefix*2)
	right := t.nodeHash(level-1, prefix*2+1)
	return hashPair(left, right)
}

func (t *tree) root() [32]byte {
	return t.nodeHash(t.depth, 0)
}

// path returns the depth+1-entry sibling chain for index. Entries 0..depth-1
// hold the real sibling pair at each level; the top synthetic entry
// duplicates the root, preserving the depth+1 shape RollupBuilder expects
// when it reads a sub-root at rollupRootHeight.
func (t *tree) path(index uint64) types.HashPath {
	hp := make(types.HashPath, t.depth+1)
	idx := index
	for level := 0; level < t.depth; level++ {
		parentPrefix := idx >> 1
		leftIdx := parentPrefix * 2
		rightIdx := leftIdx + 1
		hp[level][0] = t.nodeHash(level, leftIdx)
		hp[level][1] = t.nodeHash(level, rightIdx)
		idx = parentPrefix
	}
	r := t.root()
	hp[t.depth][0] = r
	hp[t.depth][1] = r
	return hp
}
