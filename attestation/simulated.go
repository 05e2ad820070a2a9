// In-memory attestation service used by tests across packages.

package attestation

import (
	"context"
	"fmt"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
)

type scriptedAnswer struct {
	atts []agreement.Attestation
	err  error
}

// SimulatedReader implements agreement.AttestationReader from a
// scripted sequence of answers per transaction hash. The last answer
// repeats forever; an unscripted hash answers ErrNotReady.
type SimulatedReader struct {
	mu      sync.Mutex
	scripts map[ethcommon.Hash][]scriptedAnswer
	pos     map[ethcommon.Hash]int
	Queries int
}

func NewSimulatedReader() *SimulatedReader {
	return &SimulatedReader{
		scripts: make(map[ethcommon.Hash][]scriptedAnswer),
		pos:     make(map[ethcommon.Hash]int),
	}
}

// ScriptReady appends an all-ready answer for txHash.
func (r *SimulatedReader) ScriptReady(txHash ethcommon.Hash, atts []agreement.Attestation) {
	r.script(txHash, scriptedAnswer{atts: atts})
}

// ScriptNotReady appends a not-ready answer for txHash.
func (r *SimulatedReader) ScriptNotReady(txHash ethcommon.Hash) {
	r.script(txHash, scriptedAnswer{err: ErrNotReady})
}

// ScriptError appends a server error answer for txHash.
func (r *SimulatedReader) ScriptError(txHash ethcommon.Hash, err error) {
	r.script(txHash, scriptedAnswer{err: err})
}

// ScriptPartial appends an answer where only the first ready entries
// are signed and the rest still carry the pending sentinel.
func (r *SimulatedReader) ScriptPartial(txHash ethcommon.Hash, atts []agreement.Attestation, ready int) {
	partial := make([]agreement.Attestation, len(atts))
	copy(partial, atts)
	for i := ready; i < len(partial); i++ {
		partial[i].Signature = agreement.PendingSignature
		partial[i].Status = "pending_confirmations"
	}
	r.script(txHash, scriptedAnswer{atts: partial})
}

func (r *SimulatedReader) script(txHash ethcommon.Hash, a scriptedAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[txHash] = append(r.scripts[txHash], a)
}

func (r *SimulatedReader) Attestations(_ context.Context, _ uint32, txHash ethcommon.Hash) ([]agreement.Attestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queries++

	answers := r.scripts[txHash]
	if len(answers) == 0 {
		return nil, ErrNotReady
	}
	i := r.pos[txHash]
	if i < len(answers)-1 {
		r.pos[txHash] = i + 1
	}
	a := answers[i]
	if a.err != nil {
		return nil, a.err
	}
	out := make([]agreement.Attestation, len(a.atts))
	copy(out, a.atts)
	return out, nil
}

// ReadyAttestations builds n distinct ready attestations, handy for
// scripting. Message payloads encode the index so ordering is
// checkable.
func ReadyAttestations(n int) []agreement.Attestation {
	out := make([]agreement.Attestation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, agreement.Attestation{
			Message:   fmt.Sprintf("0x%064x", i+1),
			Signature: fmt.Sprintf("0x%064x", 0xa0+i),
			Status:    agreement.AttestationComplete,
		})
	}
	return out
}
