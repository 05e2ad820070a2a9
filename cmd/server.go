// Server = wallet engine client + attestation client + pollers +
// orchestrator + journal db + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/stablemesh-io/cctp-bridge-go/attestation"
	"github.com/stablemesh-io/cctp-bridge-go/burnbatch"
	"github.com/stablemesh-io/cctp-bridge-go/chainconfig"
	"github.com/stablemesh-io/cctp-bridge-go/orchestrator"
	"github.com/stablemesh-io/cctp-bridge-go/receiptmgr"
	"github.com/stablemesh-io/cctp-bridge-go/reporter"
	"github.com/stablemesh-io/cctp-bridge-go/transferdb"
	"github.com/stablemesh-io/cctp-bridge-go/txpoller"
	"github.com/stablemesh-io/cctp-bridge-go/walletengine"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	// burn confirmation polling
	burnSettleDelay  = 2 * time.Second
	burnPollInterval = 2 * time.Second
	burnPollTimeout  = 20 * time.Minute

	// attestation polling
	attestationPollInterval = 10 * time.Second
	attestationPollTimeout  = 2 * time.Hour

	// mint receipt retry policy
	receiptMaxAttempts      = 5
	receiptBaseBackoff      = 5 * time.Second
	receiptMaxBackoff       = 1 * time.Minute
	receiptNonceSettleDelay = 10 * time.Second
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type BridgeServerConfig struct {
	// wallet engine side
	EngineBaseURL     string // e.g. http://localhost:3005
	EngineAccessToken string // bearer token of the engine API
	BackendWalletAddr string // engine-held wallet that signs every batch

	// attestation side
	AttestationBaseURL string // e.g. https://iris-api-sandbox.circle.com
	AttestationAPIKey  string // optional bearer token

	// journal side
	DbFilePath string // db file path

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080

	// Log preset: debug, info or production
	LogPreset string
}

// BridgeServer holds the objects that consists of the bridge server.
type BridgeServer struct {
	MyChains       *chainconfig.Table
	MyEngine       *walletengine.Client
	MyAttestations *attestation.Client
	MyTransferDb   *transferdb.SQLiteTransferDB
	MyMetrics      *reporter.Metrics
	MyOrchestrator *orchestrator.Orchestrator
	MyReporter     *reporter.HttpReporter
}

// NewBridgeServer creates a new bridge server.
// The sagas it launches run on their own goroutines; the server itself
// only owns the http reporter.
func NewBridgeServer(bsc *BridgeServerConfig) (*BridgeServer, error) {
	if !ethcommon.IsHexAddress(bsc.BackendWalletAddr) {
		return nil, fmt.Errorf("invalid backend wallet address %q", bsc.BackendWalletAddr)
	}
	initiator := ethcommon.HexToAddress(bsc.BackendWalletAddr)

	// 1) Chain endpoint table: built-in testnets + config overrides.
	myChains := chainconfig.DefaultTable()
	if err := chainconfig.LoadOverrides(myChains, viper.GetViper()); err != nil {
		logger.Fatalf("cannot load chain overrides: %v", err)
		return nil, err
	}

	// 2) Wallet engine client. It signs and broadcasts; we never hold
	// keys in this process.
	myEngine := walletengine.NewClient(walletengine.Config{
		BaseURL:     bsc.EngineBaseURL,
		AccessToken: bsc.EngineAccessToken,
	})

	// 3) Attestation service client.
	myAttestations := attestation.NewClient(attestation.Config{
		BaseURL: bsc.AttestationBaseURL,
		APIKey:  bsc.AttestationAPIKey,
	})

	// 4) Metrics registry, shared by pollers, receipt manager and
	// orchestrator.
	myMetrics := reporter.NewMetrics()

	// 5) Pollers over the two clients.
	myTxPoller := txpoller.New(myEngine, txpoller.Config{
		SettleDelay:  burnSettleDelay,
		PollInterval: burnPollInterval,
		Timeout:      burnPollTimeout,
	})
	myAttestationPoller := attestation.NewPoller(myAttestations, attestation.PollerConfig{
		PollInterval: attestationPollInterval,
		Timeout:      attestationPollTimeout,
		OnPoll:       myMetrics.AttestationPoll,
	})

	// 6) Burn gateway and mint receipt manager.
	myBurnGateway := burnbatch.New(myChains, myEngine)
	myReceiptMgr := receiptmgr.New(myChains, myEngine, myTxPoller, receiptmgr.Config{
		MaxAttempts:      receiptMaxAttempts,
		BaseBackoff:      receiptBaseBackoff,
		MaxBackoff:       receiptMaxBackoff,
		NonceSettleDelay: receiptNonceSettleDelay,
		Notify:           myMetrics.ReceiptRetry,
	})

	// 7) Journal db for post-restart inspection.
	myTransferDb, err := transferdb.NewSQLiteTransferDB(bsc.DbFilePath)
	if err != nil {
		logger.Fatalf("failed to open db file: %v", err)
		return nil, err
	}

	// 8) The orchestrator ties it together.
	myOrchestrator := orchestrator.New(myChains, myBurnGateway, myTxPoller, myAttestationPoller, myReceiptMgr).
		WithJournal(myTransferDb).
		WithObserver(myMetrics)

	// *** Setup a http server to accept transfers & report status ***
	myReporter := reporter.NewHttpReporter(
		bsc.HttpIp,
		bsc.HttpPort,
		myOrchestrator,
		myChains,
		initiator,
	).WithWallets(myEngine).WithTransferDB(myTransferDb).WithMetrics(myMetrics)

	// Turn on the http server
	go myReporter.Run()

	// Give it some time to start the http server
	time.Sleep(1 * time.Second)
	// *** End the setup of http server ***

	return &BridgeServer{
		MyChains:       myChains,
		MyEngine:       myEngine,
		MyAttestations: myAttestations,
		MyTransferDb:   myTransferDb,
		MyMetrics:      myMetrics,
		MyOrchestrator: myOrchestrator,
		MyReporter:     myReporter,
	}, nil
}

// Create, then start the bridge server and wait.
// Press Ctrl-C to kill the server.
func StartBridgeServerAndWait(bsc *BridgeServerConfig) {
	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	server, err := NewBridgeServer(bsc)
	if err != nil {
		logger.Fatalf("failed to create bridge server: %v", err)
		return
	}
	defer server.MyTransferDb.Close()

	sig := <-sigCh
	fmt.Printf("Received signal: %v, shutting down...\n", sig)

	// In-flight sagas get a moment to journal their current stage.
	for _, snap := range server.MyOrchestrator.Snapshots() {
		if !snap.Stage.Terminal() {
			server.MyOrchestrator.Cancel(snap.ID)
		}
	}
	time.Sleep(1 * time.Second)
}
