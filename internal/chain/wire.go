package chain

import (
	"encoding/binary"

	"github.com/veilchain/aggregator/internal/types"
)

// The rollup proof blob RollupBuilder submits (the header it encodes here,
// followed by the proof bytes the ProofGenerator returned) carries a fixed
// public-input header before its zero-knowledge payload, so the chain adapter can recover rollupId and
// rollupSize from "the first bytes of the rollup proof" as required, plus
// the data entries and nullifiers the processor emits on confirmation.
// numDataEntries is the rollup's padded data-tree footprint (2*rollupSize);
// the transmitted dataEntries array carries only the real, non-padding
// notes and may be shorter, letting StateSerializer fill the remainder with
// a single zero-leaf write:
//
//	[8]  rollupId             (big-endian uint64)
//	[8]  dataStartIndex       (big-endian uint64)
//	[4]  rollupSize           (big-endian uint32)
//	[4]  numDataEntries       (big-endian uint32)
//	[4]  numTransmitted       (big-endian uint32)
//	[numTransmitted*64]       dataEntries
//	[4]  numNullifiers        (big-endian uint32)
//	[numNullifiers*32]        nullifiers
//	[...] opaque zk proof payload, unparsed here
const proofHeaderLen = 8 + 8 + 4 + 4 + 4

// ProofHeader is the parsed public-input prefix of a rollup proof blob.
type ProofHeader struct {
	RollupID       uint64
	DataStartIndex uint64
	RollupSize     uint32
	NumDataEntries uint32 // padded data-tree footprint, independent of len(DataEntries)
	DataEntries    [][64]byte
	Nullifiers     [][32]byte
}

// EncodeProofHeader serializes h as the fixed-layout prefix described above.
// Callers append their own opaque proof payload after the returned bytes.
func EncodeProofHeader(h ProofHeader) []byte {
	buf := make([]byte, proofHeaderLen)
	binary.BigEndian.PutUint64(buf[0:8], h.RollupID)
	binary.BigEndian.PutUint64(buf[8:16], h.DataStartIndex)
	binary.BigEndian.PutUint32(buf[16:20], h.RollupSize)
	binary.BigEndian.PutUint32(buf[20:24], h.NumDataEntries)
	binary.BigEndian.PutUint32(buf[24:28], uint32(len(h.DataEntries)))
	for _, e := range h.DataEntries {
		buf = append(buf, e[:]...)
	}

	var nullCount [4]byte
	binary.BigEndian.PutUint32(nullCount[:], uint32(len(h.Nullifiers)))
	buf = append(buf, nullCount[:]...)
	for _, n := range h.Nullifiers {
		buf = append(buf, n[:]...)
	}
	return buf
}

// DecodeProofHeader parses the fixed-layout prefix from a rollup proof blob
// and returns it along with the remaining (opaque) payload.
func DecodeProofHeader(proof []byte) (ProofHeader, []byte, error) {
	if len(proof) < proofHeaderLen {
		return ProofHeader{}, nil, types.New(types.ErrMalformedProof, "proof shorter than its fixed header")
	}
	h := ProofHeader{
		RollupID:       binary.BigEndian.Uint64(proof[0:8]),
		DataStartIndex: binary.BigEndian.Uint64(proof[8:16]),
		RollupSize:     binary.BigEndian.Uint32(proof[16:20]),
		NumDataEntries: binary.BigEndian.Uint32(proof[20:24]),
	}
	numTransmitted := binary.BigEndian.Uint32(proof[24:28])
	off := proofHeaderLen

	need := int(numTransmitted) * 64
	if len(proof) < off+need+4 {
		return ProofHeader{}, nil, types.New(types.ErrMalformedProof, "proof truncated in data entries")
	}
	for i := uint32(0); i < numTransmitted; i++ {
		var e [64]byte
		copy(e[:], proof[off:off+64])
		h.DataEntries = append(h.DataEntries, e)
		off += 64
	}

	numNullifiers := binary.BigEndian.Uint32(proof[off : off+4])
	off += 4
	need = int(numNullifiers) * 32
	if len(proof) < off+need {
		return ProofHeader{}, nil, types.New(types.ErrMalformedProof, "proof truncated in nullifiers")
	}
	for i := uint32(0); i < numNullifiers; i++ {
		var n [32]byte
		copy(n[:], proof[off:off+32])
		h.Nullifiers = append(h.Nullifiers, n)
		off += 32
	}

	return h, proof[off:], nil
}
