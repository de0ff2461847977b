// Package admission implements TxAdmission: the synchronous gate every
// client-submitted proof passes through before it is allowed onto the tx
// queue. Grounded on the teacher's decode-or-reject request handling
// (walletserver/controllers/wallet_controller.go's Import handler) for the
// parse-then-reject shape, and on its fixed-offset binary.BigEndian field
// layouts (core/rollups.go) for reading a wire payload as a sequence of
// known-width fields instead of a self-describing encoding.
package admission

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilchain/aggregator/internal/types"
)

// The raw bytes a client submits carry a fixed public-input header before
// the opaque zero-knowledge payload, the same convention the chain adapter
// uses for on-chain proof blobs (internal/chain/wire.go), so the join-split
// circuit can read its public inputs directly out of a known prefix:
//
//	[1]  txType
//	[4]  assetId       (big-endian uint32)
//	[8]  txFee         (big-endian uint64)
//	[32] nullifier1
//	[32] nullifier2
//	[64] newNote1
//	[64] newNote2
//	[32] noteTreeRoot
//	[2]  viewingKey1Len (big-endian uint16) + viewingKey1
//	[2]  viewingKey2Len (big-endian uint16) + viewingKey2
//	[...] opaque zk proof payload
const fixedHeaderLen = 1 + 4 + 8 + 32 + 32 + 64 + 64 + 32

// ParseProof extracts a JoinSplitProof's fields from a raw client submission.
// The entire input, header included, is retained verbatim as ProofData: the
// verifier reads its public inputs directly out of the same bytes the
// circuit was built against, rather than from a re-serialized copy.
func ParseProof(raw []byte) (*types.JoinSplitProof, error) {
	if len(raw) < fixedHeaderLen+4 {
		return nil, types.New(types.ErrMalformedProof, "proof shorter than its fixed header")
	}

	tx := &types.JoinSplitProof{
		TxID:      crypto.Keccak256(raw),
		ProofData: raw,
		Type:      types.TxType(raw[0]),
		AssetID:   binary.BigEndian.Uint32(raw[1:5]),
		TxFee:     binary.BigEndian.Uint64(raw[5:13]),
	}

	off := 13
	tx.Nullifier1 = append([]byte(nil), raw[off:off+32]...)
	off += 32
	tx.Nullifier2 = append([]byte(nil), raw[off:off+32]...)
	off += 32
	copy(tx.NewNote1[:], raw[off:off+64])
	off += 64
	copy(tx.NewNote2[:], raw[off:off+64])
	off += 64
	copy(tx.NoteTreeRoot[:], raw[off:off+32])
	off += 32

	vk1, off, err := readLenPrefixed(raw, off)
	if err != nil {
		return nil, err
	}
	tx.ViewingKey1 = vk1

	vk2, _, err := readLenPrefixed(raw, off)
	if err != nil {
		return nil, err
	}
	tx.ViewingKey2 = vk2

	return tx, nil
}

func readLenPrefixed(raw []byte, off int) ([]byte, int, error) {
	if len(raw) < off+2 {
		return nil, 0, types.New(types.ErrMalformedProof, "proof truncated in viewing key length")
	}
	n := int(binary.BigEndian.Uint16(raw[off : off+2]))
	off += 2
	if len(raw) < off+n {
		return nil, 0, types.New(types.ErrMalformedProof, "proof truncated in viewing key")
	}
	return append([]byte(nil), raw[off:off+n]...), off + n, nil
}
