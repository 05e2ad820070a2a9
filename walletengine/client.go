// Client for the external wallet-engine service. The engine holds the
// keys; we only submit call batches, poll queue status, and read
// balances through its REST API.

package walletengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	logger "github.com/sirupsen/logrus"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
)

const (
	headerBackendWallet = "X-Backend-Wallet-Address"

	defaultHTTPTimeout = 30 * time.Second
)

type Config struct {
	// BaseURL of the wallet engine, e.g. http://localhost:3005
	BaseURL string

	// AccessToken is sent as a bearer token on every request.
	AccessToken string

	// HTTPTimeout bounds one round trip, not a whole poll loop.
	HTTPTimeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// SubmitAtomicBatch submits the calls as one all-or-nothing batch
// signed by the initiator's backend wallet. Returns the queue id.
func (c *Client) SubmitAtomicBatch(
	ctx context.Context,
	chainID int64,
	initiator ethcommon.Address,
	calls []agreement.BatchCall,
) (string, error) {
	body := submitBatchRequest{Transactions: make([]batchTransaction, 0, len(calls))}
	for _, call := range calls {
		value := "0"
		if call.Value != nil {
			value = call.Value.String()
		}
		body.Transactions = append(body.Transactions, batchTransaction{
			ToAddress: call.To.Hex(),
			Data:      hexutil.Encode(call.Data),
			Value:     value,
		})
	}

	path := fmt.Sprintf("/backend-wallet/%d/send-transaction-batch-atomic", chainID)
	var resp submitBatchResponse
	err := c.do(ctx, http.MethodPost, path, initiator.Hex(), &body, &resp)
	if err != nil {
		return "", err
	}
	if resp.Result.QueueID == "" {
		return "", fmt.Errorf("engine returned no queueId")
	}

	logger.WithFields(logger.Fields{
		"queueId": resp.Result.QueueID,
		"chainId": chainID,
		"calls":   len(calls),
	}).Debug("atomic batch submitted")

	return resp.Result.QueueID, nil
}

// SubmissionStatus fetches one status observation for a queue id.
func (c *Client) SubmissionStatus(ctx context.Context, queueID string) (*agreement.SubmissionStatus, error) {
	var resp statusResponse
	err := c.do(ctx, http.MethodGet, "/transaction/status/"+url.PathEscape(queueID), "", nil, &resp)
	if err != nil {
		return nil, err
	}

	st := &agreement.SubmissionStatus{
		QueueID:      resp.Result.QueueID,
		Status:       agreement.EngineTxStatus(resp.Result.Status),
		Onchain:      agreement.OnchainOutcome(resp.Result.OnchainStatus),
		ErrorMessage: resp.Result.ErrorMessage,
	}
	// the two hash fields are interchangeable; prefer the newer one
	hash := resp.Result.TransactionHash
	if hash == "" {
		hash = resp.Result.TxHash
	}
	if hash != "" {
		st.TxHash = ethcommon.HexToHash(hash)
	}
	return st, nil
}

// CreateWallet asks the engine to provision a backend wallet and
// returns its address. Key custody stays with the engine.
func (c *Client) CreateWallet(ctx context.Context, walletType, label string) (ethcommon.Address, error) {
	body := createWalletRequest{Type: walletType, Label: label}
	var resp createWalletResponse
	if err := c.do(ctx, http.MethodPost, "/backend-wallet/create", "", &body, &resp); err != nil {
		return ethcommon.Address{}, err
	}
	if !ethcommon.IsHexAddress(resp.Result.WalletAddress) {
		return ethcommon.Address{}, fmt.Errorf("engine returned invalid wallet address %q", resp.Result.WalletAddress)
	}
	return ethcommon.HexToAddress(resp.Result.WalletAddress), nil
}

// ERC20Balance reads the token balance of a wallet through the engine.
func (c *Client) ERC20Balance(
	ctx context.Context,
	chainID int64,
	token ethcommon.Address,
	wallet ethcommon.Address,
) (*BalanceResult, error) {
	path := fmt.Sprintf("/contract/%d/%s/erc20/balance-of?wallet_address=%s",
		chainID, token.Hex(), wallet.Hex())
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// do runs one JSON round trip. backendWallet, when non-empty, is set
// as the X-Backend-Wallet-Address header the engine uses to pick the
// signing wallet.
func (c *Client) do(ctx context.Context, method, path, backendWallet string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	if backendWallet != "" {
		req.Header.Set(headerBackendWallet, backendWallet)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var engineErr errorResponse
		if json.Unmarshal(raw, &engineErr) == nil && engineErr.Error.Message != "" {
			return fmt.Errorf("engine %s %s: %s (http %d)", method, path, engineErr.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("engine %s %s: http %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
