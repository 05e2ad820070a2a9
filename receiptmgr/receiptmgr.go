// Submits the destination-chain side of a transfer: one mint-triggering
// receiveMessage call per attestation, as a single atomic batch, with a
// bounded retry loop on top. The mint step is the one known to fail
// transiently (nonce desync between distributed signers, bundler
// timeouts), so unlike the burn side it owns a retry policy.

package receiptmgr

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/chainconfig"
	"github.com/stablemesh-io/cctp-bridge-go/common"
	"github.com/stablemesh-io/cctp-bridge-go/txpoller"
)

const messageTransmitterABIJSON = `[
	{"type":"function","name":"receiveMessage","stateMutability":"nonpayable",
	 "inputs":[{"name":"message","type":"bytes"},{"name":"attestation","type":"bytes"}],
	 "outputs":[{"name":"success","type":"bool"}]}
]`

var messageTransmitterABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(messageTransmitterABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

type Config struct {
	// MaxAttempts is the total submission attempts, first try included.
	MaxAttempts int

	// BaseBackoff doubles per attempt, capped at MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// NonceSettleDelay is waited once after a confirmed success, so the
	// signing-key nonce observed by the initiating wallet converges
	// across the signer infrastructure before the wallet is reused.
	NonceSettleDelay time.Duration

	// Notify, when set, is called before each retry sleep with the
	// attempt number that just failed and its error.
	Notify func(attempt int, err error)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxAttempts == 0 {
		out.MaxAttempts = 5
	}
	if out.BaseBackoff == 0 {
		out.BaseBackoff = 5 * time.Second
	}
	if out.MaxBackoff == 0 {
		out.MaxBackoff = time.Minute
	}
	if out.NonceSettleDelay == 0 {
		out.NonceSettleDelay = 10 * time.Second
	}
	return out
}

type Manager struct {
	chains    *chainconfig.Table
	submitter agreement.TxSubmitter
	poller    *txpoller.Poller
	cfg       Config
}

func New(chains *chainconfig.Table, submitter agreement.TxSubmitter, poller *txpoller.Poller, cfg Config) *Manager {
	return &Manager{
		chains:    chains,
		submitter: submitter,
		poller:    poller,
		cfg:       cfg.withDefaults(),
	}
}

// BuildReceiptCalls assembles one receiveMessage call per attestation,
// addressed to the destination chain's message transmitter.
func BuildReceiptCalls(dest chainconfig.Endpoint, atts []agreement.Attestation) ([]agreement.BatchCall, error) {
	calls := make([]agreement.BatchCall, 0, len(atts))
	for i := range atts {
		if !atts[i].Ready() {
			return nil, agreement.NewFailure(agreement.SubmissionError, nil,
				"attestation %d is not ready for minting", i)
		}
		data, err := messageTransmitterABI.Pack("receiveMessage",
			common.HexStrToByteSlice(atts[i].Message),
			common.HexStrToByteSlice(atts[i].Signature),
		)
		if err != nil {
			return nil, agreement.NewFailure(agreement.SubmissionError, err,
				"encode receiveMessage %d", i)
		}
		calls = append(calls, agreement.BatchCall{
			To:    dest.MessageTransmitter,
			Data:  data,
			Value: big.NewInt(0),
		})
	}
	return calls, nil
}

// SubmitReceipt submits the mint batch for one destination chain and
// polls it to confirmation, retrying the whole submit+confirm cycle
// with exponential backoff on the documented transient signatures.
// Non-transient failures propagate immediately; an exhausted budget
// escalates to a polling timeout naming the last underlying error.
func (m *Manager) SubmitReceipt(
	ctx context.Context,
	destChain string,
	initiator ethcommon.Address,
	atts []agreement.Attestation,
) (ethcommon.Hash, error) {
	dest, err := m.chains.Get(destChain)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	if len(atts) == 0 {
		return ethcommon.Hash{}, agreement.NewFailure(agreement.SubmissionError, nil,
			"receipt batch for %s needs at least one attestation", destChain)
	}
	calls, err := BuildReceiptCalls(dest, atts)
	if err != nil {
		return ethcommon.Hash{}, err
	}

	log := logger.WithFields(logger.Fields{
		"destChain": destChain,
		"messages":  len(atts),
	})

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = m.cfg.BaseBackoff
	expo.MaxInterval = m.cfg.MaxBackoff
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(expo, uint64(m.cfg.MaxAttempts-1)), ctx)

	var mintTx ethcommon.Hash
	attempt := 0

	operation := func() error {
		attempt++

		queueID, err := m.submitter.SubmitAtomicBatch(ctx, dest.ChainID, initiator, calls)
		if err != nil {
			if IsTransient(err) {
				return agreement.NewFailure(agreement.TransientReceiptFailure, err,
					"attempt %d: engine rejected mint batch", attempt)
			}
			return backoff.Permanent(agreement.NewFailure(agreement.SubmissionError, err,
				"engine rejected mint batch on %s", destChain))
		}

		hash, err := m.poller.AwaitTransaction(ctx, queueID)
		if err != nil {
			if agreement.IsKind(err, agreement.Cancelled) {
				return backoff.Permanent(err)
			}
			if IsTransient(err) {
				return agreement.NewFailure(agreement.TransientReceiptFailure, err,
					"attempt %d: mint confirmation failed", attempt)
			}
			return backoff.Permanent(err)
		}

		mintTx = hash
		return nil
	}

	notify := func(err error, next time.Duration) {
		log.Errorf("mint attempt %d failed, retrying in %s: err=%v", attempt, next, err)
		if m.cfg.Notify != nil {
			m.cfg.Notify(attempt, err)
		}
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ethcommon.Hash{}, agreement.NewFailure(agreement.Cancelled, err,
				"mint on %s aborted", destChain)
		}
		if agreement.IsKind(err, agreement.TransientReceiptFailure) {
			return ethcommon.Hash{}, agreement.NewFailure(agreement.PollingTimeout, err,
				"mint on %s gave up after %d attempts", destChain, attempt)
		}
		return ethcommon.Hash{}, err
	}

	log.WithField("mintTx", mintTx.Hex()).Info("mint batch confirmed")

	// let the signer nonce converge before this wallet is used again
	_ = common.Sleep(ctx, m.cfg.NonceSettleDelay)

	return mintTx, nil
}

// IsTransient matches the failure signatures worth retrying: nonce
// desynchronization between signers, bundler-level timeouts, and the
// confirmation poll running out of time.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if agreement.IsKind(err, agreement.PollingTimeout) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce") || strings.Contains(msg, "bundler")
}
