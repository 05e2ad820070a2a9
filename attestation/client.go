// Client for the bridge operator's attestation service.

package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
)

// ErrNotReady is returned while the service has no usable answer yet:
// the burn transaction is not indexed, or the message list is empty.
var ErrNotReady = errors.New("attestations not ready")

type Config struct {
	// BaseURL of the attestation API, e.g.
	// https://iris-api-sandbox.circle.com
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	HTTPTimeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type messagesResponse struct {
	Messages []struct {
		Status      string `json:"status"`
		Message     string `json:"message"`
		Attestation string `json:"attestation"`
	} `json:"messages"`
}

// Attestations fetches every message the source transaction emitted on
// the given protocol domain, in emission order. Entries may still be
// pending; the poller decides when the set is usable.
func (c *Client) Attestations(ctx context.Context, domain uint32, sourceTxHash ethcommon.Hash) ([]agreement.Attestation, error) {
	url := fmt.Sprintf("%s/v2/messages/%d?transactionHash=%s", c.cfg.BaseURL, domain, sourceTxHash.Hex())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// the service answers 404 before it has indexed the transaction
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusAccepted {
		return nil, ErrNotReady
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attestation service: http %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Messages) == 0 {
		return nil, ErrNotReady
	}

	out := make([]agreement.Attestation, 0, len(parsed.Messages))
	for _, m := range parsed.Messages {
		out = append(out, agreement.Attestation{
			Message:   m.Message,
			Signature: m.Attestation,
			Status:    m.Status,
		})
	}
	return out, nil
}
