// In-memory wallet engine used by tests across packages.

package walletengine

import (
	"context"
	"fmt"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
)

// ScriptedSubmission describes how the fake engine answers one
// SubmitAtomicBatch call and the status sequence its queue id then
// walks through. The last status repeats forever.
type ScriptedSubmission struct {
	SubmitErr error
	Statuses  []*agreement.SubmissionStatus
}

// RecordedSubmission is what the fake engine saw.
type RecordedSubmission struct {
	QueueID   string
	ChainID   int64
	Initiator ethcommon.Address
	Calls     []agreement.BatchCall
}

type queueState struct {
	statuses []*agreement.SubmissionStatus
	pos      int
}

// SimulatedEngine implements agreement.TxSubmitter and
// agreement.TxStatusReader. Unscripted submissions succeed and mine
// immediately with a hash derived from the queue id, which keeps happy
// path tests short.
type SimulatedEngine struct {
	mu          sync.Mutex
	scripts     []ScriptedSubmission
	queues      map[string]*queueState
	submissions []RecordedSubmission
	seq         int
}

func NewSimulatedEngine() *SimulatedEngine {
	return &SimulatedEngine{queues: make(map[string]*queueState)}
}

// Script queues an answer for the next unanswered submission.
func (e *SimulatedEngine) Script(s ScriptedSubmission) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts = append(e.scripts, s)
}

// Submissions returns everything submitted so far.
func (e *SimulatedEngine) Submissions() []RecordedSubmission {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RecordedSubmission, len(e.submissions))
	copy(out, e.submissions)
	return out
}

func (e *SimulatedEngine) SubmitAtomicBatch(
	_ context.Context,
	chainID int64,
	initiator ethcommon.Address,
	calls []agreement.BatchCall,
) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var script ScriptedSubmission
	if len(e.scripts) > 0 {
		script = e.scripts[0]
		e.scripts = e.scripts[1:]
	}
	if script.SubmitErr != nil {
		return "", script.SubmitErr
	}

	e.seq++
	queueID := fmt.Sprintf("queue-%d", e.seq)

	statuses := script.Statuses
	if len(statuses) == 0 {
		statuses = []*agreement.SubmissionStatus{{
			QueueID: queueID,
			Status:  agreement.EngineTxMined,
			TxHash:  DeterministicTxHash(queueID),
			Onchain: agreement.OnchainSuccess,
		}}
	}

	e.queues[queueID] = &queueState{statuses: statuses}
	e.submissions = append(e.submissions, RecordedSubmission{
		QueueID:   queueID,
		ChainID:   chainID,
		Initiator: initiator,
		Calls:     calls,
	})
	return queueID, nil
}

func (e *SimulatedEngine) SubmissionStatus(_ context.Context, queueID string) (*agreement.SubmissionStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.queues[queueID]
	if !ok {
		return nil, fmt.Errorf("unknown queue id %q", queueID)
	}
	st := q.statuses[q.pos]
	if q.pos < len(q.statuses)-1 {
		q.pos++
	}
	cp := *st
	cp.QueueID = queueID
	return &cp, nil
}

// DeterministicTxHash is the hash an unscripted submission mines with.
func DeterministicTxHash(queueID string) ethcommon.Hash {
	return crypto.Keccak256Hash([]byte("simulated-tx:" + queueID))
}
