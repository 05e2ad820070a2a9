// Builds and submits the source-chain side of a transfer: one token
// approval plus one burn call per recipient, as a single atomic batch.

package burnbatch

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/chainconfig"
	"github.com/stablemesh-io/cctp-bridge-go/common"
)

const (
	// maxFeeDivisor derives the protocol-mandated per-burn fee bound:
	// maxFee = amount / 5000, integer division. Truncation matters,
	// the protocol's own fee-acceptance check truncates too.
	maxFeeDivisor = 5000

	// minFinalityThreshold the protocol accepts for standard transfers.
	minFinalityThreshold = uint32(1000)
)

const erc20ABIJSON = `[
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

const tokenMessengerABIJSON = `[
	{"type":"function","name":"depositForBurn","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"amount","type":"uint256"},
		{"name":"destinationDomain","type":"uint32"},
		{"name":"mintRecipient","type":"bytes32"},
		{"name":"burnToken","type":"address"},
		{"name":"destinationCaller","type":"bytes32"},
		{"name":"maxFee","type":"uint256"},
		{"name":"minFinalityThreshold","type":"uint32"}],
	 "outputs":[]}
]`

var (
	erc20ABI          = mustParseABI(erc20ABIJSON)
	tokenMessengerABI = mustParseABI(tokenMessengerABIJSON)

	// anyone may present the signed message on the destination chain
	openDestinationCaller = [32]byte{}
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

type Gateway struct {
	chains    *chainconfig.Table
	submitter agreement.TxSubmitter
}

func New(chains *chainconfig.Table, submitter agreement.TxSubmitter) *Gateway {
	return &Gateway{chains: chains, submitter: submitter}
}

// BuildBurnCalls assembles the batch in its fixed order: approval for
// the exact aggregate amount first, then one burn per recipient in
// recipient order. The order is load-bearing: attestations come back
// index-aligned with the burn calls.
func (g *Gateway) BuildBurnCalls(
	source chainconfig.Endpoint,
	recipients []agreement.Recipient,
) ([]agreement.BatchCall, error) {
	total := new(big.Int)
	for i := range recipients {
		if recipients[i].Amount == nil || recipients[i].Amount.Sign() <= 0 {
			return nil, agreement.NewFailure(agreement.SubmissionError, nil,
				"recipient %s has a non-positive amount", recipients[i].Address.Hex())
		}
		total.Add(total, recipients[i].Amount)
	}

	approveData, err := erc20ABI.Pack("approve", source.TokenMessenger, total)
	if err != nil {
		return nil, agreement.NewFailure(agreement.SubmissionError, err, "encode approve")
	}

	calls := make([]agreement.BatchCall, 0, 1+len(recipients))
	calls = append(calls, agreement.BatchCall{
		To:    source.Token,
		Data:  approveData,
		Value: big.NewInt(0),
	})

	for i := range recipients {
		r := &recipients[i]
		dest, err := g.chains.Get(r.Chain)
		if err != nil {
			return nil, err
		}

		maxFee := new(big.Int).Div(r.Amount, big.NewInt(maxFeeDivisor))
		burnData, err := tokenMessengerABI.Pack("depositForBurn",
			common.BigIntClone(r.Amount),
			dest.Domain,
			common.AddressToBytes32(r.Address),
			source.Token,
			openDestinationCaller,
			maxFee,
			minFinalityThreshold,
		)
		if err != nil {
			return nil, agreement.NewFailure(agreement.SubmissionError, err,
				"encode depositForBurn for %s", r.Address.Hex())
		}

		calls = append(calls, agreement.BatchCall{
			To:    source.TokenMessenger,
			Data:  burnData,
			Value: big.NewInt(0),
		})
	}

	return calls, nil
}

// SubmitBurnBatch submits approval + burns (+ any extra calls) as one
// all-or-nothing transaction and returns the engine's queue id. The
// atomicity is the correctness anchor of the saga: there is no state
// where tokens are approved but a burn is missing, or some recipients
// burned and others not.
func (g *Gateway) SubmitBurnBatch(
	ctx context.Context,
	sourceChain string,
	initiator ethcommon.Address,
	recipients []agreement.Recipient,
	extraCalls ...agreement.BatchCall,
) (string, error) {
	if len(recipients) == 0 {
		return "", agreement.NewFailure(agreement.SubmissionError, nil,
			"burn batch needs at least one recipient")
	}

	source, err := g.chains.Get(sourceChain)
	if err != nil {
		return "", err
	}

	calls, err := g.BuildBurnCalls(source, recipients)
	if err != nil {
		return "", err
	}
	calls = append(calls, extraCalls...)

	queueID, err := g.submitter.SubmitAtomicBatch(ctx, source.ChainID, initiator, calls)
	if err != nil {
		return "", agreement.NewFailure(agreement.SubmissionError, err,
			"engine rejected burn batch on %s", sourceChain)
	}

	logger.WithFields(logger.Fields{
		"queueId":     queueID,
		"sourceChain": sourceChain,
		"recipients":  len(recipients),
	}).Info("burn batch submitted")

	return queueID, nil
}
