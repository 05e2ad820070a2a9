package txpoller

import (
	"context"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/walletengine"
)

var fastCfg = Config{
	SettleDelay:  time.Millisecond,
	PollInterval: time.Millisecond,
	Timeout:      time.Second,
}

func submitOne(t *testing.T, engine *walletengine.SimulatedEngine, statuses ...*agreement.SubmissionStatus) string {
	t.Helper()
	engine.Script(walletengine.ScriptedSubmission{Statuses: statuses})
	queueID, err := engine.SubmitAtomicBatch(context.Background(), 1, ethcommon.Address{}, nil)
	require.NoError(t, err)
	return queueID
}

func TestAwaitTransactionHappyPath(t *testing.T) {
	engine := walletengine.NewSimulatedEngine()
	want := ethcommon.HexToHash("0xabc1")
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{Status: agreement.EngineTxQueued},
		&agreement.SubmissionStatus{Status: agreement.EngineTxSent},
		&agreement.SubmissionStatus{Status: agreement.EngineTxMined, TxHash: want, Onchain: agreement.OnchainSuccess},
	)

	hash, err := New(engine, fastCfg).AwaitTransaction(context.Background(), queueID)
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}

func TestAwaitTransactionDelayedHash(t *testing.T) {
	// mined with success but the hash arrives one poll later; the
	// poller must re-poll rather than fail
	engine := walletengine.NewSimulatedEngine()
	want := ethcommon.HexToHash("0xabc2")
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{Status: agreement.EngineTxMined, Onchain: agreement.OnchainSuccess},
		&agreement.SubmissionStatus{Status: agreement.EngineTxMined, TxHash: want, Onchain: agreement.OnchainSuccess},
	)

	hash, err := New(engine, fastCfg).AwaitTransaction(context.Background(), queueID)
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}

func TestAwaitTransactionMinedWithoutOutcomeKeepsPolling(t *testing.T) {
	engine := walletengine.NewSimulatedEngine()
	want := ethcommon.HexToHash("0xabc3")
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{Status: agreement.EngineTxMined, TxHash: want},
		&agreement.SubmissionStatus{Status: agreement.EngineTxMined, TxHash: want},
		&agreement.SubmissionStatus{Status: agreement.EngineTxMined, TxHash: want, Onchain: agreement.OnchainSuccess},
	)

	hash, err := New(engine, fastCfg).AwaitTransaction(context.Background(), queueID)
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}

func TestAwaitTransactionOnchainFailure(t *testing.T) {
	engine := walletengine.NewSimulatedEngine()
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{Status: agreement.EngineTxFailed, ErrorMessage: "out of gas"},
	)

	_, err := New(engine, fastCfg).AwaitTransaction(context.Background(), queueID)
	require.Error(t, err)
	assert.True(t, agreement.IsKind(err, agreement.OnchainFailure))
	assert.Contains(t, err.Error(), "out of gas")
}

func TestAwaitTransactionRevertedReceipt(t *testing.T) {
	engine := walletengine.NewSimulatedEngine()
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{
			Status:  agreement.EngineTxMined,
			TxHash:  ethcommon.HexToHash("0xdead"),
			Onchain: agreement.OnchainReverted,
		},
	)

	_, err := New(engine, fastCfg).AwaitTransaction(context.Background(), queueID)
	require.Error(t, err)
	assert.True(t, agreement.IsKind(err, agreement.OnchainFailure))
}

func TestAwaitTransactionUnknownStatusFailsFast(t *testing.T) {
	engine := walletengine.NewSimulatedEngine()
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{Status: agreement.EngineTxStatus("teleported")},
	)

	start := time.Now()
	_, err := New(engine, fastCfg).AwaitTransaction(context.Background(), queueID)
	require.Error(t, err)
	assert.True(t, agreement.IsKind(err, agreement.SubmissionError))
	assert.Less(t, time.Since(start), fastCfg.Timeout)
}

func TestAwaitTransactionTimeout(t *testing.T) {
	engine := walletengine.NewSimulatedEngine()
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{Status: agreement.EngineTxQueued},
	)

	cfg := fastCfg
	cfg.Timeout = 20 * time.Millisecond
	_, err := New(engine, cfg).AwaitTransaction(context.Background(), queueID)
	require.Error(t, err)
	assert.True(t, agreement.IsKind(err, agreement.PollingTimeout))
}

func TestAwaitTransactionCancelled(t *testing.T) {
	engine := walletengine.NewSimulatedEngine()
	queueID := submitOne(t, engine,
		&agreement.SubmissionStatus{Status: agreement.EngineTxQueued},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(engine, fastCfg).AwaitTransaction(ctx, queueID)
	require.Error(t, err)
	assert.True(t, agreement.IsKind(err, agreement.Cancelled))
}
