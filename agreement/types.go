// Global agreement on types shared across the bridge packages.

package agreement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Recipient is one payout leg of a transfer: who receives how much on
// which destination chain. Immutable once a transfer begins.
type Recipient struct {
	Chain   string         // chain key in the endpoint table, e.g. "base-sepolia"
	Address common.Address // destination wallet address
	Amount  *big.Int       // smallest token unit, never scaled
}

func (r *Recipient) String() string {
	return fmt.Sprintf("%s@%s amount=%s", r.Address.Hex(), r.Chain, r.Amount)
}

// BatchCall is one call inside an atomic batch submitted through the
// wallet engine. The engine applies all calls of a batch or none.
type BatchCall struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// EngineTxStatus is the queue status reported by the wallet engine for
// a submitted batch.
type EngineTxStatus string

const (
	EngineTxQueued    EngineTxStatus = "queued"
	EngineTxSubmitted EngineTxStatus = "submitted"
	EngineTxSent      EngineTxStatus = "sent"
	EngineTxMined     EngineTxStatus = "mined"
	EngineTxFailed    EngineTxStatus = "failed"
	EngineTxErrored   EngineTxStatus = "errored"
)

// OnchainOutcome is the execution result of a mined transaction.
// Empty means the engine has not observed the receipt yet.
type OnchainOutcome string

const (
	OnchainUnknown  OnchainOutcome = ""
	OnchainSuccess  OnchainOutcome = "success"
	OnchainReverted OnchainOutcome = "reverted"
	OnchainFailed   OnchainOutcome = "failed"
)

// SubmissionStatus is one status observation for a queued submission.
// TxHash stays the zero hash until the engine learns it; the hash and
// the "mined" status can arrive in either order.
type SubmissionStatus struct {
	QueueID      string
	Status       EngineTxStatus
	TxHash       common.Hash
	Onchain      OnchainOutcome
	ErrorMessage string
}

func (s *SubmissionStatus) String() string {
	return fmt.Sprintf("queueId=%s status=%s tx=%s onchain=%s", s.QueueID, s.Status, s.TxHash.Hex(), s.Onchain)
}

// PendingSignature is the sentinel the attestation service fills in
// before a message is actually signed.
const PendingSignature = "PENDING"

// AttestationComplete is the per-message status once the service has
// signed it.
const AttestationComplete = "complete"

// Attestation is one burn-emitted message plus the bridge operator's
// signature over it. A burn batch emits one message per depositForBurn
// call, so a transaction maps to a slice of these, index-aligned with
// the burn calls.
type Attestation struct {
	Message   string // 0x-prefixed hex of the raw message bytes
	Signature string // 0x-prefixed hex signature, or the PENDING sentinel
	Status    string
}

// Ready reports whether the attestation can be presented for minting.
func (a *Attestation) Ready() bool {
	return a.Message != "" &&
		a.Signature != "" &&
		a.Signature != PendingSignature &&
		a.Status == AttestationComplete
}
