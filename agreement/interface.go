// Implement following interfaces to plug a different wallet engine or
// attestation service into the bridge.

package agreement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TxSubmitter submits one atomic batch of calls through the wallet
// engine. The engine guarantees all-or-nothing application of the
// calls and returns an opaque queue id to poll on.
type TxSubmitter interface {
	SubmitAtomicBatch(
		ctx context.Context,
		chainID int64,
		initiator common.Address,
		calls []BatchCall,
	) (string, error)
}

// TxStatusReader reads the current status of a queued submission.
// A nil error with Status unchanged is a normal answer; the poller
// decides what counts as terminal.
type TxStatusReader interface {
	SubmissionStatus(ctx context.Context, queueID string) (*SubmissionStatus, error)
}

// AttestationReader fetches the attestations emitted by one source
// transaction. Implementations return a not-ready sentinel (or any
// transport error) while the service has nothing usable yet; the
// poller treats both the same way.
type AttestationReader interface {
	Attestations(ctx context.Context, domain uint32, sourceTxHash common.Hash) ([]Attestation, error)
}
