// The transfer saga: drives a batched transfer through burn,
// attestation and mint, and projects progress onto per-recipient
// state. This is the only component that sequences the others; each
// stage either hands a success value to the next or ends the whole
// transfer with a typed failure.

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/attestation"
	"github.com/stablemesh-io/cctp-bridge-go/burnbatch"
	"github.com/stablemesh-io/cctp-bridge-go/chainconfig"
	"github.com/stablemesh-io/cctp-bridge-go/common"
	"github.com/stablemesh-io/cctp-bridge-go/receiptmgr"
	"github.com/stablemesh-io/cctp-bridge-go/txpoller"
)

type Orchestrator struct {
	chains       *chainconfig.Table
	gateway      *burnbatch.Gateway
	burnPoller   *txpoller.Poller
	attestations *attestation.Poller
	receipts     *receiptmgr.Manager

	journal  Journal  // optional
	observer Observer // optional

	mu    sync.Mutex
	sagas map[string]*saga
}

func New(
	chains *chainconfig.Table,
	gateway *burnbatch.Gateway,
	burnPoller *txpoller.Poller,
	attestations *attestation.Poller,
	receipts *receiptmgr.Manager,
) *Orchestrator {
	return &Orchestrator{
		chains:       chains,
		gateway:      gateway,
		burnPoller:   burnPoller,
		attestations: attestations,
		receipts:     receipts,
		sagas:        make(map[string]*saga),
	}
}

func (o *Orchestrator) WithJournal(j Journal) *Orchestrator {
	o.journal = j
	return o
}

func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.observer = obs
	return o
}

// StartTransfer validates the request, registers a new saga and runs
// it on its own goroutine. ctx scopes the whole saga: cancelling it is
// the cooperative cancellation handle, and the returned id is the key
// for Snapshot/Cancel/Done.
func (o *Orchestrator) StartTransfer(
	ctx context.Context,
	sourceChain string,
	initiator ethcommon.Address,
	recipients []agreement.Recipient,
) (string, error) {
	if len(recipients) == 0 {
		return "", agreement.NewFailure(agreement.SubmissionError, nil,
			"transfer needs at least one recipient")
	}

	source, err := o.chains.Get(sourceChain)
	if err != nil {
		return "", err
	}
	seen := make(map[ethcommon.Address]bool, len(recipients))
	for i := range recipients {
		r := &recipients[i]
		if _, err := o.chains.Get(r.Chain); err != nil {
			return "", err
		}
		if r.Amount == nil || r.Amount.Sign() <= 0 {
			return "", agreement.NewFailure(agreement.SubmissionError, nil,
				"recipient %s has a non-positive amount", r.Address.Hex())
		}
		// the recipient map is keyed by address, so one address can
		// appear only once per transfer
		if seen[r.Address] {
			return "", agreement.NewFailure(agreement.SubmissionError, nil,
				"duplicate recipient address %s", r.Address.Hex())
		}
		seen[r.Address] = true
	}

	id := common.RandHexID(16)
	runCtx, cancel := context.WithCancel(ctx)
	s := newSaga(id, sourceChain, source, initiator, recipients, cancel)

	o.mu.Lock()
	o.sagas[id] = s
	o.mu.Unlock()

	if o.journal != nil {
		if err := o.journal.RecordStart(id, sourceChain, initiator, len(recipients)); err != nil {
			logger.Errorf("journal: record start failed: err=%v", err)
		}
	}

	go o.run(runCtx, s)
	return id, nil
}

// Snapshot returns a read-only copy of a saga's current state.
func (o *Orchestrator) Snapshot(id string) (*TransferSnapshot, bool) {
	o.mu.Lock()
	s, ok := o.sagas[id]
	o.mu.Unlock()
	if !ok {
		return nil, false
	}
	return s.snapshot(), true
}

// Snapshots returns a copy of every known saga's state.
func (o *Orchestrator) Snapshots() []*TransferSnapshot {
	o.mu.Lock()
	all := make([]*saga, 0, len(o.sagas))
	for _, s := range o.sagas {
		all = append(all, s)
	}
	o.mu.Unlock()

	out := make([]*TransferSnapshot, 0, len(all))
	for _, s := range all {
		out = append(out, s.snapshot())
	}
	return out
}

// Cancel requests cooperative cancellation of a running saga. The
// saga stops at its next poll iteration, not mid network call.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	s, ok := o.sagas[id]
	o.mu.Unlock()
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// Done returns a channel closed when the saga reaches a terminal
// stage.
func (o *Orchestrator) Done(id string) (<-chan struct{}, bool) {
	o.mu.Lock()
	s, ok := o.sagas[id]
	o.mu.Unlock()
	if !ok {
		return nil, false
	}
	return s.done, true
}

// run drives one saga to a terminal stage. Stages 1-3 are never
// retried here: burns are rare-failure/high-value, and any failure
// before the mint is terminal for the transfer. Only the receipt
// submission (inside receiptmgr) owns a retry policy.
func (o *Orchestrator) run(ctx context.Context, s *saga) {
	defer close(s.done)
	defer s.cancel()

	log := logger.WithFields(logger.Fields{
		"transferId":  s.id,
		"sourceChain": s.sourceChain,
	})

	// 1. submit approval + burns as one atomic batch
	o.transition(s, StageSubmitting)
	s.setAllActive(RecipientProcessing, "submitting burn batch")

	queueID, err := o.gateway.SubmitBurnBatch(ctx, s.sourceChain, s.initiator, s.recipients)
	if err != nil {
		o.failTransfer(s, err)
		return
	}
	s.setQueueID(queueID)

	// 2. wait for the burn to confirm on-chain
	o.transition(s, StageAwaitingBurnConfirmation)
	s.setAllActive(RecipientProcessing, "waiting for burn confirmation")

	burnTx, err := o.burnPoller.AwaitTransaction(ctx, queueID)
	if err != nil {
		o.failTransfer(s, err)
		return
	}
	s.setBurnTx(burnTx)
	log = log.WithField("burnTx", burnTx.Hex())
	log.Info("burn confirmed")
	if o.journal != nil {
		if err := o.journal.RecordBurn(s.id, queueID, burnTx); err != nil {
			logger.Errorf("journal: record burn failed: err=%v", err)
		}
	}

	// 3. wait for every message of the burn to be attested
	o.transition(s, StageAwaitingAttestation)
	s.setAllActive(RecipientWaitingForAttestation,
		"waiting for attestation of "+s.source.ExplorerTxURL(burnTx))

	atts, err := o.attestations.AwaitAttestations(ctx, s.source.Domain, burnTx)
	if err != nil {
		o.failTransfer(s, err)
		return
	}
	// one message per burn call, in burn-call order; anything else
	// breaks the position-to-recipient correspondence
	if len(atts) != len(s.recipients) {
		o.failTransfer(s, agreement.NewFailure(agreement.OnchainFailure, nil,
			"burn %s emitted %d messages for %d recipients",
			burnTx.Hex(), len(atts), len(s.recipients)))
		return
	}

	// 4. mint per destination chain, groups in parallel
	o.transition(s, StageReceiving)
	s.setAllActive(RecipientReceiving, "submitting mint batch")

	groups := groupByDestination(s.recipients, atts)
	var wg sync.WaitGroup
	errCh := make(chan error, len(groups))

	for _, g := range groups {
		wg.Add(1)
		go func(g *destGroup) {
			defer wg.Done()
			mintTx, err := o.receipts.SubmitReceipt(ctx, g.chain, s.initiator, g.atts)
			if err != nil {
				log.Errorf("mint on %s failed: err=%v", g.chain, err)
				s.failGroup(g.addresses, err.Error())
				errCh <- fmt.Errorf("%s: %w", g.chain, err)
				return
			}
			dest, _ := o.chains.Get(g.chain)
			s.completeGroup(g.addresses, mintTx, "minted: "+dest.ExplorerTxURL(mintTx))
			log.WithFields(logger.Fields{"destChain": g.chain, "mintTx": mintTx.Hex()}).Info("mint confirmed")
			if o.journal != nil {
				if err := o.journal.RecordMint(s.id, g.chain, mintTx); err != nil {
					logger.Errorf("journal: record mint failed: err=%v", err)
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)

	var groupErrs []string
	for err := range errCh {
		groupErrs = append(groupErrs, err.Error())
	}
	if len(groupErrs) > 0 {
		// completed groups keep their state; only the transfer as a
		// whole is marked failed
		s.fail(strings.Join(groupErrs, "; "))
		o.notifyStage(s, StageFailed)
		return
	}

	o.transition(s, StageCompleted)
	log.Info("transfer completed")
}

func (o *Orchestrator) failTransfer(s *saga, err error) {
	logger.WithField("transferId", s.id).Errorf("transfer failed: err=%v", err)
	s.fail(err.Error())
	o.notifyStage(s, StageFailed)
}

func (o *Orchestrator) transition(s *saga, stage Stage) {
	s.setStage(stage)
	o.notifyStage(s, stage)
}

// notifyStage fans a stage change out to journal and observer.
func (o *Orchestrator) notifyStage(s *saga, stage Stage) {
	if o.journal != nil {
		detail := ""
		if stage == StageFailed {
			snap := s.snapshot()
			detail = snap.Error
		}
		if err := o.journal.RecordStage(s.id, stage, detail); err != nil {
			logger.Errorf("journal: record stage failed: err=%v", err)
		}
	}
	if o.observer != nil {
		o.observer.TransferStage(s.id, stage)
	}
}
