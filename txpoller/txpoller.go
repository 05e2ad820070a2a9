// Polls the wallet engine until a queued submission is confirmed
// on-chain, failed, or out of time.

package txpoller

import (
	"context"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/common"
)

type Config struct {
	// SettleDelay is waited once before the first query; a freshly
	// submitted batch is not queryable immediately.
	SettleDelay time.Duration

	// PollInterval between status queries.
	PollInterval time.Duration

	// Timeout is the wall-clock budget for the whole poll.
	Timeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.SettleDelay == 0 {
		out.SettleDelay = 2 * time.Second
	}
	if out.PollInterval == 0 {
		out.PollInterval = 2 * time.Second
	}
	if out.Timeout == 0 {
		out.Timeout = 20 * time.Minute
	}
	return out
}

type Poller struct {
	status agreement.TxStatusReader
	cfg    Config
}

func New(status agreement.TxStatusReader, cfg Config) *Poller {
	return &Poller{status: status, cfg: cfg.withDefaults()}
}

// AwaitTransaction polls queueID until the submission is mined with an
// on-chain success and a known transaction hash. "mined" alone is not
// enough: the hash and the receipt outcome can each lag behind the
// status, so both missing-hash and missing-outcome re-poll instead of
// returning early. Unrecognized status values fail fast. Transport
// errors are retried until the budget runs out. Safe to call
// concurrently for different queue ids.
func (p *Poller) AwaitTransaction(ctx context.Context, queueID string) (ethcommon.Hash, error) {
	log := logger.WithField("queueId", queueID)
	deadline := time.Now().Add(p.cfg.Timeout)

	if err := common.Sleep(ctx, p.cfg.SettleDelay); err != nil {
		return ethcommon.Hash{}, cancelled(queueID, err)
	}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return ethcommon.Hash{}, cancelled(queueID, err)
		}

		st, err := p.status.SubmissionStatus(ctx, queueID)
		if err != nil {
			if ctx.Err() != nil {
				return ethcommon.Hash{}, cancelled(queueID, ctx.Err())
			}
			log.Errorf("status query failed, will retry: err=%v", err)
			if err := common.Sleep(ctx, p.cfg.PollInterval); err != nil {
				return ethcommon.Hash{}, cancelled(queueID, err)
			}
			continue
		}

		switch st.Status {
		case agreement.EngineTxFailed, agreement.EngineTxErrored:
			return ethcommon.Hash{}, agreement.NewFailure(
				agreement.OnchainFailure, nil,
				"submission %s reported %s: %s", queueID, st.Status, detailOf(st))

		case agreement.EngineTxMined:
			switch st.Onchain {
			case agreement.OnchainSuccess:
				if st.TxHash != (ethcommon.Hash{}) {
					log.WithField("txHash", st.TxHash.Hex()).Debug("submission confirmed")
					return st.TxHash, nil
				}
				// mined+success but hash not yet populated: transient
				log.Debug("mined without tx hash, re-polling")
			case agreement.OnchainReverted, agreement.OnchainFailed:
				return ethcommon.Hash{}, agreement.NewFailure(
					agreement.OnchainFailure, nil,
					"submission %s reverted on-chain: %s", queueID, detailOf(st))
			default:
				// mined but receipt outcome unknown: keep polling,
				// an explicit success is required before returning
				log.Debug("mined without on-chain outcome, re-polling")
			}

		case agreement.EngineTxQueued, agreement.EngineTxSubmitted, agreement.EngineTxSent:
			log.Debugf("submission still %s", st.Status)

		default:
			return ethcommon.Hash{}, agreement.NewFailure(
				agreement.SubmissionError, nil,
				"submission %s has unrecognized status %q", queueID, st.Status)
		}

		if err := common.Sleep(ctx, p.cfg.PollInterval); err != nil {
			return ethcommon.Hash{}, cancelled(queueID, err)
		}
	}

	return ethcommon.Hash{}, agreement.NewFailure(
		agreement.PollingTimeout, nil,
		"submission %s not confirmed within %s", queueID, p.cfg.Timeout)
}

func cancelled(queueID string, err error) error {
	return agreement.NewFailure(agreement.Cancelled, err, "poll of %s aborted", queueID)
}

func detailOf(st *agreement.SubmissionStatus) string {
	if st.ErrorMessage != "" {
		return st.ErrorMessage
	}
	if st.TxHash != (ethcommon.Hash{}) {
		return st.TxHash.Hex()
	}
	return "no error detail"
}
