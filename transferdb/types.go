package transferdb

import (
	"time"
)

// TransferRecord mirrors one row of the transfers table. The in-memory
// saga owns the live state; rows here are the audit trail of what each
// transfer went through.
type TransferRecord struct {
	TransferID  string // primary key, no duplication allowed
	SourceChain string
	Initiator   string // hex address
	Recipients  int64
	Stage       string
	QueueID     string
	BurnTxHash  string // hex, empty until the burn confirms
	Detail      string // error text when the stage is failed
	UpdatedAt   time.Time
}

// MintRecord mirrors one row of transfer_mints. One row per
// destination chain of a transfer, written when that chain's mint
// batch confirms.
type MintRecord struct {
	TransferID string
	Chain      string
	MintTxHash string
}
