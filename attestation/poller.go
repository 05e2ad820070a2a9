package attestation

import (
	"context"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/common"
)

type PollerConfig struct {
	// PollInterval between attestation queries; also the backoff after
	// a transport or server error.
	PollInterval time.Duration

	// Timeout is the wall-clock budget. Bridge finality can take a
	// while, so this defaults much longer than transaction polling.
	Timeout time.Duration

	// OnPoll, when set, is called once per attestation query (metrics).
	OnPoll func()
}

func (c *PollerConfig) withDefaults() PollerConfig {
	out := *c
	if out.PollInterval == 0 {
		out.PollInterval = 10 * time.Second
	}
	if out.Timeout == 0 {
		out.Timeout = 2 * time.Hour
	}
	return out
}

type Poller struct {
	reader agreement.AttestationReader
	cfg    PollerConfig
}

func NewPoller(reader agreement.AttestationReader, cfg PollerConfig) *Poller {
	return &Poller{reader: reader, cfg: cfg.withDefaults()}
}

// AwaitAttestations polls until every message emitted by the burn
// transaction carries a real signature, preserving emission order.
// Partial readiness keeps polling: the result is never a mix of signed
// and pending entries. Errors from the service are transient (the
// bridge network, not this client, is the moving part); only the
// timeout or cancellation stops the loop.
func (p *Poller) AwaitAttestations(
	ctx context.Context,
	domain uint32,
	sourceTxHash ethcommon.Hash,
) ([]agreement.Attestation, error) {
	log := logger.WithFields(logger.Fields{
		"domain": domain,
		"burnTx": sourceTxHash.Hex(),
	})
	deadline := time.Now().Add(p.cfg.Timeout)

	for attempt := 1; time.Now().Before(deadline); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, agreement.NewFailure(agreement.Cancelled, err,
				"attestation poll for %s aborted", sourceTxHash.Hex())
		}

		if p.cfg.OnPoll != nil {
			p.cfg.OnPoll()
		}
		atts, err := p.reader.Attestations(ctx, domain, sourceTxHash)
		switch {
		case err == ErrNotReady:
			log.Debugf("attempt %d: no messages yet", attempt)
		case err != nil:
			if ctx.Err() != nil {
				return nil, agreement.NewFailure(agreement.Cancelled, ctx.Err(),
					"attestation poll for %s aborted", sourceTxHash.Hex())
			}
			log.Errorf("attempt %d: attestation query failed, will retry: err=%v", attempt, err)
		case allReady(atts):
			log.Debugf("all %d attestations ready after %d attempts", len(atts), attempt)
			return atts, nil
		default:
			log.Debugf("attempt %d: %d/%d attestations ready", attempt, readyCount(atts), len(atts))
		}

		if err := common.Sleep(ctx, p.cfg.PollInterval); err != nil {
			return nil, agreement.NewFailure(agreement.Cancelled, err,
				"attestation poll for %s aborted", sourceTxHash.Hex())
		}
	}

	return nil, agreement.NewFailure(agreement.PollingTimeout, nil,
		"attestations for %s not ready within %s", sourceTxHash.Hex(), p.cfg.Timeout)
}

func allReady(atts []agreement.Attestation) bool {
	if len(atts) == 0 {
		return false
	}
	for i := range atts {
		if !atts[i].Ready() {
			return false
		}
	}
	return true
}

func readyCount(atts []agreement.Attestation) int {
	n := 0
	for i := range atts {
		if atts[i].Ready() {
			n++
		}
	}
	return n
}
