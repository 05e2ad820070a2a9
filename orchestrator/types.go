package orchestrator

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
)

// Stage of one transfer saga. failed is reachable from every
// non-terminal stage.
type Stage string

const (
	StageIdle                     Stage = "idle"
	StageSubmitting               Stage = "submitting"
	StageAwaitingBurnConfirmation Stage = "awaiting_burn_confirmation"
	StageAwaitingAttestation      Stage = "awaiting_attestation"
	StageReceiving                Stage = "receiving"
	StageCompleted                Stage = "completed"
	StageFailed                   Stage = "failed"
)

// Terminal reports whether the saga is done moving.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// RecipientStatus is the per-recipient projection of the saga's stage.
type RecipientStatus string

const (
	RecipientIdle                  RecipientStatus = "idle"
	RecipientProcessing            RecipientStatus = "processing"
	RecipientWaitingForAttestation RecipientStatus = "waiting_for_attestation"
	RecipientReceiving             RecipientStatus = "receiving"
	RecipientCompleted             RecipientStatus = "completed"
	RecipientFailed                RecipientStatus = "failed"
)

// RecipientState is what a caller shows for one payout leg. The burn
// hash is shared by every recipient of the transfer; the mint hash is
// shared by every recipient of the same destination chain, because the
// mint is itself a batch covering all of them.
type RecipientState struct {
	Recipient  agreement.Recipient `json:"recipient"`
	Status     RecipientStatus     `json:"status"`
	Message    string              `json:"message"`
	BurnTxHash ethcommon.Hash      `json:"burnTxHash"`
	MintTxHash ethcommon.Hash      `json:"mintTxHash"`
}

// TransferSnapshot is a read-only copy of a saga's state, safe to hand
// out while the saga keeps running. Recipients are keyed by their hex
// address; the map holds exactly one entry per recipient for the whole
// life of the transfer.
type TransferSnapshot struct {
	ID          string                    `json:"id"`
	SourceChain string                    `json:"sourceChain"`
	Initiator   ethcommon.Address         `json:"initiator"`
	Stage       Stage                     `json:"stage"`
	QueueID     string                    `json:"queueId,omitempty"`
	BurnTxHash  ethcommon.Hash            `json:"burnTxHash"`
	Error       string                    `json:"error,omitempty"`
	Recipients  map[string]RecipientState `json:"recipients"`
}

// Journal persists saga progress for observability and post-restart
// inspection. The in-memory saga stays the source of truth; journal
// errors are logged, never fatal.
type Journal interface {
	RecordStart(transferID, sourceChain string, initiator ethcommon.Address, recipients int) error
	RecordStage(transferID string, stage Stage, detail string) error
	RecordBurn(transferID, queueID string, burnTx ethcommon.Hash) error
	RecordMint(transferID, destChain string, mintTx ethcommon.Hash) error
}

// Observer gets stage transitions as they happen (metrics, logging).
type Observer interface {
	TransferStage(transferID string, stage Stage)
}
