package reporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablemesh-io/cctp-bridge-go/attestation"
	"github.com/stablemesh-io/cctp-bridge-go/burnbatch"
	"github.com/stablemesh-io/cctp-bridge-go/chainconfig"
	"github.com/stablemesh-io/cctp-bridge-go/orchestrator"
	"github.com/stablemesh-io/cctp-bridge-go/receiptmgr"
	"github.com/stablemesh-io/cctp-bridge-go/transferdb"
	"github.com/stablemesh-io/cctp-bridge-go/txpoller"
	"github.com/stablemesh-io/cctp-bridge-go/walletengine"
)

var testInitiator = ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")

type serverFixture struct {
	engine   *walletengine.SimulatedEngine
	atts     *attestation.SimulatedReader
	orch     *orchestrator.Orchestrator
	metrics  *Metrics
	reporter *HttpReporter
	router   *gin.Engine
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := walletengine.NewSimulatedEngine()
	atts := attestation.NewSimulatedReader()
	table := chainconfig.DefaultTable()

	poller := txpoller.New(engine, txpoller.Config{
		SettleDelay:  time.Millisecond,
		PollInterval: time.Millisecond,
		Timeout:      2 * time.Second,
	})
	attPoller := attestation.NewPoller(atts, attestation.PollerConfig{
		PollInterval: time.Millisecond,
		Timeout:      2 * time.Second,
	})
	receipts := receiptmgr.New(table, engine, poller, receiptmgr.Config{
		MaxAttempts:      2,
		BaseBackoff:      time.Millisecond,
		MaxBackoff:       4 * time.Millisecond,
		NonceSettleDelay: time.Millisecond,
	})

	metrics := NewMetrics()
	orch := orchestrator.New(table, burnbatch.New(table, engine), poller, attPoller, receipts).
		WithObserver(metrics)

	reporter := NewHttpReporter("127.0.0.1", "0", orch, table, testInitiator).
		WithMetrics(metrics)

	return &serverFixture{
		engine:   engine,
		atts:     atts,
		orch:     orch,
		metrics:  metrics,
		reporter: reporter,
		router:   reporter.SetupRouter(),
	}
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHello(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, http.MethodGet, ROUTE_HELLO, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "world")
}

func TestStartTransferAndPollStatus(t *testing.T) {
	f := newServerFixture(t)
	f.atts.ScriptReady(walletengine.DeterministicTxHash("queue-1"), attestation.ReadyAttestations(1))

	w := f.do(t, http.MethodPost, ROUTE_TRANSFER, `{
		"sourceChain": "ethereum-sepolia",
		"recipients": [
			{"chain": "base-sepolia", "address": "0x00000000000000000000000000000000000000a1", "amount": "1000000"}
		]
	}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.ID)

	done, ok := f.orch.Done(accepted.ID)
	require.True(t, ok)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not finish")
	}

	w = f.do(t, http.MethodGet, ROUTE_TRANSFER+"/"+accepted.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var status struct {
		Data orchestrator.TransferSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, orchestrator.StageCompleted, status.Data.Stage)
	assert.Len(t, status.Data.Recipients, 1)
}

func TestStartTransferRejectsBadRequests(t *testing.T) {
	f := newServerFixture(t)

	// missing recipients
	w := f.do(t, http.MethodPost, ROUTE_TRANSFER, `{"sourceChain": "ethereum-sepolia"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// malformed amount
	w = f.do(t, http.MethodPost, ROUTE_TRANSFER, `{
		"sourceChain": "ethereum-sepolia",
		"recipients": [{"chain": "base-sepolia", "address": "0x00000000000000000000000000000000000000a1", "amount": "ten"}]
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// malformed address
	w = f.do(t, http.MethodPost, ROUTE_TRANSFER, `{
		"sourceChain": "ethereum-sepolia",
		"recipients": [{"chain": "base-sepolia", "address": "not-an-address", "amount": "1"}]
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unknown chain maps to 404
	w = f.do(t, http.MethodPost, ROUTE_TRANSFER, `{
		"sourceChain": "mars-mainnet",
		"recipients": [{"chain": "base-sepolia", "address": "0x00000000000000000000000000000000000000a1", "amount": "1"}]
	}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTransferNotFound(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, http.MethodGet, ROUTE_TRANSFER+"/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTransferFallsBackToJournal(t *testing.T) {
	f := newServerFixture(t)

	db, err := transferdb.NewSQLiteTransferDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RecordStart("old-run", "ethereum-sepolia", testInitiator, 2))
	require.NoError(t, db.RecordStage("old-run", orchestrator.StageCompleted, ""))

	f.reporter.WithTransferDB(db)
	f.router = f.reporter.SetupRouter()

	w := f.do(t, http.MethodGet, ROUTE_TRANSFER+"/old-run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "old-run")
	assert.Contains(t, w.Body.String(), string(orchestrator.StageCompleted))
}

func TestCancelUnknownTransfer(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, http.MethodPost, ROUTE_TRANSFER+"/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChains(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, http.MethodGet, ROUTE_CHAINS, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ethereum-sepolia")
	assert.Contains(t, w.Body.String(), "base-sepolia")
}

func TestMetricsCountStages(t *testing.T) {
	f := newServerFixture(t)
	f.atts.ScriptReady(walletengine.DeterministicTxHash("queue-1"), attestation.ReadyAttestations(1))

	w := f.do(t, http.MethodPost, ROUTE_TRANSFER, `{
		"sourceChain": "ethereum-sepolia",
		"recipients": [
			{"chain": "base-sepolia", "address": "0x00000000000000000000000000000000000000a1", "amount": "5"}
		]
	}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	done, _ := f.orch.Done(accepted.ID)
	<-done

	w = f.do(t, http.MethodGet, ROUTE_METRICS, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `bridge_transfer_stages_total{stage="completed"} 1`)
	assert.Contains(t, body, `bridge_transfers_total{outcome="completed"} 1`)
}
