package orchestrator

import (
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/chainconfig"
)

// saga is one in-flight transfer. All stage transitions happen on a
// single goroutine (run in orchestrator.go); the mutex exists because
// destination-chain groups complete concurrently and snapshots can be
// taken at any time. Recipient entries are only ever updated in place,
// never removed, so concurrent writers to different keys cannot lose
// each other's updates.
type saga struct {
	id          string
	sourceChain string
	source      chainconfig.Endpoint
	initiator   ethcommon.Address
	recipients  []agreement.Recipient

	mu      sync.Mutex
	stage   Stage
	queueID string
	burnTx  ethcommon.Hash
	errMsg  string
	states  map[ethcommon.Address]*RecipientState

	cancel func()
	done   chan struct{}
}

func newSaga(
	id string,
	sourceChain string,
	source chainconfig.Endpoint,
	initiator ethcommon.Address,
	recipients []agreement.Recipient,
	cancel func(),
) *saga {
	s := &saga{
		id:          id,
		sourceChain: sourceChain,
		source:      source,
		initiator:   initiator,
		recipients:  recipients,
		stage:       StageIdle,
		states:      make(map[ethcommon.Address]*RecipientState, len(recipients)),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, r := range recipients {
		s.states[r.Address] = &RecipientState{
			Recipient: r,
			Status:    RecipientIdle,
		}
	}
	return s
}

func (s *saga) setStage(stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

// setAllActive moves every not-yet-terminal recipient to the given
// status with a shared message.
func (s *saga) setAllActive(status RecipientStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rs := range s.states {
		if rs.Status == RecipientCompleted || rs.Status == RecipientFailed {
			continue
		}
		rs.Status = status
		rs.Message = message
	}
}

func (s *saga) setQueueID(queueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueID = queueID
}

// setBurnTx records the shared burn hash on the transfer and on every
// recipient.
func (s *saga) setBurnTx(burnTx ethcommon.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.burnTx = burnTx
	for _, rs := range s.states {
		rs.BurnTxHash = burnTx
	}
}

// completeGroup marks one destination-chain group completed with its
// shared mint hash.
func (s *saga) completeGroup(addresses []ethcommon.Address, mintTx ethcommon.Hash, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range addresses {
		rs := s.states[addr]
		rs.Status = RecipientCompleted
		rs.MintTxHash = mintTx
		rs.Message = message
	}
}

// failGroup marks one destination-chain group failed. Other groups are
// untouched: cross-chain groups are failure-isolated.
func (s *saga) failGroup(addresses []ethcommon.Address, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range addresses {
		rs := s.states[addr]
		rs.Status = RecipientFailed
		rs.Message = message
	}
}

// fail ends the whole transfer. Recipients already completed keep
// their state; everyone else fails with the message.
func (s *saga) fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = StageFailed
	s.errMsg = message
	for _, rs := range s.states {
		if rs.Status == RecipientCompleted {
			continue
		}
		rs.Status = RecipientFailed
		rs.Message = message
	}
}

func (s *saga) snapshot() *TransferSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := &TransferSnapshot{
		ID:          s.id,
		SourceChain: s.sourceChain,
		Initiator:   s.initiator,
		Stage:       s.stage,
		QueueID:     s.queueID,
		BurnTxHash:  s.burnTx,
		Error:       s.errMsg,
		Recipients:  make(map[string]RecipientState, len(s.states)),
	}
	for addr, rs := range s.states {
		snap.Recipients[addr.Hex()] = *rs
	}
	return snap
}

// destGroup is the recipients of one destination chain together with
// their attestations. Attestation i belongs to burn call i, and burn
// calls follow recipient order, so grouping keeps message and
// recipient aligned by construction.
type destGroup struct {
	chain     string
	addresses []ethcommon.Address
	atts      []agreement.Attestation
}

// groupByDestination splits recipients and their position-aligned
// attestations per destination chain, preserving first-seen chain
// order. An explicit grouping step, not ad hoc indexing: the
// positional correspondence is an invariant future reordering could
// silently break.
func groupByDestination(recipients []agreement.Recipient, atts []agreement.Attestation) []*destGroup {
	byChain := make(map[string]*destGroup)
	var ordered []*destGroup
	for i, r := range recipients {
		g, ok := byChain[r.Chain]
		if !ok {
			g = &destGroup{chain: r.Chain}
			byChain[r.Chain] = g
			ordered = append(ordered, g)
		}
		g.addresses = append(g.addresses, r.Address)
		g.atts = append(g.atts, atts[i])
	}
	return ordered
}
