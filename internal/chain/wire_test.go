package chain

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeProofHeaderRoundTrips(t *testing.T) {
	h := ProofHeader{
		RollupID:       7,
		DataStartIndex: 128,
		RollupSize:     4,
		NumDataEntries: 8,
		DataEntries:    [][64]byte{{1}, {2}},
		Nullifiers:     [][32]byte{{3}, {4}, {5}},
	}
	encoded := EncodeProofHeader(h)
	encoded = append(encoded, []byte("opaque-zk-payload")...)

	decoded, rest, err := DecodeProofHeader(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.RollupID != h.RollupID || decoded.DataStartIndex != h.DataStartIndex || decoded.RollupSize != h.RollupSize {
		t.Fatalf("header fields did not round-trip: %+v", decoded)
	}
	if len(decoded.DataEntries) != 2 || decoded.DataEntries[0] != h.DataEntries[0] || decoded.DataEntries[1] != h.DataEntries[1] {
		t.Fatalf("data entries did not round-trip: %v", decoded.DataEntries)
	}
	if len(decoded.Nullifiers) != 3 {
		t.Fatalf("expected 3 nullifiers, got %d", len(decoded.Nullifiers))
	}
	if !bytes.Equal(rest, []byte("opaque-zk-payload")) {
		t.Fatalf("expected remaining payload preserved, got %q", rest)
	}
}

func TestDecodeProofHeaderRejectsTruncatedInput(t *testing.T) {
	if _, _, err := DecodeProofHeader([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a header shorter than the fixed prefix")
	}
}

func TestDecodeProofHeaderRejectsTruncatedDataEntries(t *testing.T) {
	h := ProofHeader{RollupID: 1, RollupSize: 1, DataEntries: [][64]byte{{1}}}
	encoded := EncodeProofHeader(h)
	truncated := encoded[:len(encoded)-10]
	if _, _, err := DecodeProofHeader(truncated); err == nil {
		t.Fatalf("expected an error for truncated data entries")
	}
}
