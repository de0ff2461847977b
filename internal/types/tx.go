package types

import "time"

// TxType enumerates the proof variants the aggregator admits. Order matters:
// FeeCalculator.feeQuotes reports one feeConstant per type in exactly this
// order.
type TxType uint8

const (
	TxDeposit TxType = iota
	TxTransfer
	TxWithdrawToWallet
	TxWithdrawToContract
	TxAccount
	TxDefiDeposit
	TxDefiClaim
)

// TxTypeOrder is the fixed dispatch order used by FeeCalculator.feeQuotes.
var TxTypeOrder = [...]TxType{
	TxDeposit, TxTransfer, TxWithdrawToWallet, TxWithdrawToContract,
	TxAccount, TxDefiDeposit, TxDefiClaim,
}

// JoinSplitProof is a client-produced spend/join-split proof together with
// the fields extracted from it. The opaque ProofData blob is never
// interpreted by the aggregator beyond the extraction that happens once at
// admission time.
type JoinSplitProof struct {
	TxID         []byte // hash of ProofData; identifies the tx throughout its lifetime
	ProofData    []byte
	Type         TxType
	AssetID      uint32
	Nullifier1   []byte // big-endian, sized as a tree-1 key
	Nullifier2   []byte
	NewNote1     [64]byte
	NewNote2     [64]byte
	NoteTreeRoot [32]byte
	ViewingKey1  []byte
	ViewingKey2  []byte
	TxFee        uint64 // fee offered by the client, in the tx's AssetID units

	Meta     PendingTxMeta
	Second   bool // second-class: admitted and batched normally, reported distinctly
	Received time.Time
}

// PendingTxMeta carries request provenance for logging/abuse-tracking. No
// admission or batching invariant consults these fields.
type PendingTxMeta struct {
	Sender string // client IP
	Origin string // request Origin header, if any
}

// AdmissionResult is the contract boundary TxAdmission exposes to the
// (out-of-scope) HTTP layer.
type AdmissionResult struct {
	TxID     []byte
	Accepted bool
	Error    string
}
