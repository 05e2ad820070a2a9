// This is the http surface of the bridge.
// It accepts transfer requests, publishes saga snapshots,
// and proxies wallet provisioning to the wallet engine.

package reporter

import (
	"context"
	"math/big"
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
	"github.com/stablemesh-io/cctp-bridge-go/chainconfig"
	"github.com/stablemesh-io/cctp-bridge-go/orchestrator"
	"github.com/stablemesh-io/cctp-bridge-go/transferdb"
	"github.com/stablemesh-io/cctp-bridge-go/walletengine"
)

const (
	ROUTE_HELLO           = "/hello"
	ROUTE_TRANSFER        = "/transfer"
	ROUTE_TRANSFER_BY_ID  = "/transfer/:id"
	ROUTE_TRANSFER_CANCEL = "/transfer/:id/cancel"
	ROUTE_CHAINS          = "/chains"
	ROUTE_WALLET          = "/wallet"
	ROUTE_BALANCE         = "/balance"
	ROUTE_METRICS         = "/metrics"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	orch      *orchestrator.Orchestrator
	chains    *chainconfig.Table
	initiator ethcommon.Address

	wallets   *walletengine.Client         // optional, nil disables wallet routes
	transfers *transferdb.SQLiteTransferDB // optional, serves transfers of past runs
	metrics   *Metrics                     // optional, nil disables /metrics
}

func NewHttpReporter(
	serverIP string,
	serverPort string,
	orch *orchestrator.Orchestrator,
	chains *chainconfig.Table,
	initiator ethcommon.Address,
) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		orch:       orch,
		chains:     chains,
		initiator:  initiator,
	}
}

func (h *HttpReporter) WithWallets(c *walletengine.Client) *HttpReporter {
	h.wallets = c
	return h
}

func (h *HttpReporter) WithTransferDB(db *transferdb.SQLiteTransferDB) *HttpReporter {
	h.transfers = db
	return h
}

func (h *HttpReporter) WithMetrics(m *Metrics) *HttpReporter {
	h.metrics = m
	return h
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.POST(ROUTE_TRANSFER, h.StartTransfer)
	router.GET(ROUTE_TRANSFER, h.ListTransfers)
	router.GET(ROUTE_TRANSFER_BY_ID, h.GetTransfer)
	router.POST(ROUTE_TRANSFER_CANCEL, h.CancelTransfer)
	router.GET(ROUTE_CHAINS, h.Chains)
	if h.wallets != nil {
		router.POST(ROUTE_WALLET, h.CreateWallet)
		router.GET(ROUTE_BALANCE, h.Balance)
	}
	if h.metrics != nil {
		router.GET(ROUTE_METRICS, gin.WrapH(h.metrics.Handler()))
	}

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// Liveness route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

type transferRecipient struct {
	Chain   string `json:"chain" binding:"required"`
	Address string `json:"address" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type transferRequest struct {
	SourceChain string              `json:"sourceChain" binding:"required"`
	Initiator   string              `json:"initiator"` // optional, defaults to the configured wallet
	Recipients  []transferRecipient `json:"recipients" binding:"required"`
}

// Accept a transfer request and launch its saga.
// Replies with the transfer id; progress is read back via GET.
func (h *HttpReporter) StartTransfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	initiator := h.initiator
	if req.Initiator != "" {
		if !ethcommon.IsHexAddress(req.Initiator) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid initiator address"})
			return
		}
		initiator = ethcommon.HexToAddress(req.Initiator)
	}

	recipients := make([]agreement.Recipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		if !ethcommon.IsHexAddress(r.Address) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient address " + r.Address})
			return
		}
		amount, ok := new(big.Int).SetString(r.Amount, 10)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount " + r.Amount})
			return
		}
		recipients = append(recipients, agreement.Recipient{
			Chain:   r.Chain,
			Address: ethcommon.HexToAddress(r.Address),
			Amount:  amount,
		})
	}

	// the saga outlives this request, so it must not inherit the
	// request's context
	id, err := h.orch.StartTransfer(context.Background(), req.SourceChain, initiator, recipients)
	if err != nil {
		status := http.StatusBadRequest
		if agreement.IsKind(err, agreement.ConfigurationError) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

// Publish one saga snapshot. Falls back to the journal for transfers
// of a previous process run.
func (h *HttpReporter) GetTransfer(c *gin.Context) {
	id := c.Param("id")

	if snap, ok := h.orch.Snapshot(id); ok {
		c.JSON(http.StatusOK, gin.H{"data": snap})
		return
	}

	if h.transfers != nil {
		record, err := h.transfers.GetTransfer(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if record != nil {
			mints, err := h.transfers.GetMints(id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": record, "mints": mints})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "No transfer found"})
}

func (h *HttpReporter) ListTransfers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.orch.Snapshots()})
}

func (h *HttpReporter) CancelTransfer(c *gin.Context) {
	id := c.Param("id")
	if !h.orch.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No transfer found"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

// Publish the configured chain endpoints.
func (h *HttpReporter) Chains(c *gin.Context) {
	out := make(map[string]chainconfig.Endpoint)
	for _, key := range h.chains.Keys() {
		endpoint, err := h.chains.Get(key)
		if err != nil {
			continue
		}
		out[key] = endpoint
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

type createWalletRequest struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Proxy wallet provisioning to the engine. Keys never touch this
// process.
func (h *HttpReporter) CreateWallet(c *gin.Context) {
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = "local"
	}

	addr, err := h.wallets.CreateWallet(c.Request.Context(), req.Type, req.Label)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr.Hex()})
}

// Read a wallet's token balance on one chain through the engine.
func (h *HttpReporter) Balance(c *gin.Context) {
	chain := c.Query("chain")
	wallet := c.Query("address")
	if chain == "" || wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both chain and address must be provided"})
		return
	}
	if !ethcommon.IsHexAddress(wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}

	endpoint, err := h.chains.Get(chain)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.wallets.ERC20Balance(c.Request.Context(), endpoint.ChainID, endpoint.Token, ethcommon.HexToAddress(wallet))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": balance})
}
