package chain

import "github.com/veilchain/aggregator/internal/types"

const (
	compactSigLen = 65
	onChainSigLen = 96
	sigPadLen     = 31
)

// MarshalSignatures converts compact 65-byte r||s||v ECDSA signatures (the
// format github.com/ethereum/go-ethereum/crypto.Sign produces) into the
// 96-byte r||s||padding(31 zero bytes)||v layout the on-chain processor
// expects, and concatenates them in order. Bit-exact compatibility with the
// processor's signature decoder is required; this mirrors the teacher's
// crypto.Sign/SigToPub usage of the 65-byte convention, generalized to the
// on-chain padded form.
func MarshalSignatures(sigs [][compactSigLen]byte) []byte {
	out := make([]byte, 0, len(sigs)*onChainSigLen)
	for _, sig := range sigs {
		out = append(out, sig[:64]...)
		out = append(out, make([]byte, sigPadLen)...)
		out = append(out, sig[64])
	}
	return out
}

// ParseCompactSignature validates and wraps a 65-byte r||s||v signature.
func ParseCompactSignature(b []byte) ([compactSigLen]byte, error) {
	var out [compactSigLen]byte
	if len(b) != compactSigLen {
		return out, types.New(types.ErrMalformedProof, "signature must be 65 bytes")
	}
	copy(out[:], b)
	return out, nil
}
