// Static per-chain endpoint data for the burn-and-mint protocol.
// Read-only after process start; every component looks chains up here.

package chainconfig

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
)

// Endpoint describes one supported chain: the token contract, the two
// protocol contracts, and the protocol's own domain id (distinct from
// the chain's native chain id).
type Endpoint struct {
	Token              ethcommon.Address // stable-value token contract
	TokenMessenger     ethcommon.Address // burn entrypoint
	MessageTransmitter ethcommon.Address // message receiver (mint side)
	Domain             uint32            // protocol domain id
	ChainID            int64             // native chain id
	ExplorerURL        string
}

// ExplorerTxURL builds the block-explorer link for a transaction.
func (e *Endpoint) ExplorerTxURL(txHash ethcommon.Hash) string {
	return strings.TrimSuffix(e.ExplorerURL, "/") + "/tx/" + txHash.Hex()
}

// Table maps chain keys to endpoints. Safe for concurrent reads after
// construction; Add is for wiring time only.
type Table struct {
	mu sync.RWMutex
	m  map[string]Endpoint
}

func NewTable() *Table {
	return &Table{m: make(map[string]Endpoint)}
}

func (t *Table) Add(key string, ep Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[key] = ep
}

// Get looks up a chain key. An unknown key is a configuration error,
// fatal for any operation that references the chain.
func (t *Table) Get(key string) (Endpoint, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ep, ok := t.m[key]
	if !ok {
		return Endpoint{}, agreement.NewFailure(
			agreement.ConfigurationError, nil, "unknown chain key %q", key)
	}
	return ep, nil
}

// Keys returns the configured chain keys, sorted.
func (t *Table) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.m))
	for k := range t.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultTable returns the built-in testnet deployment of the protocol.
// TokenMessenger and MessageTransmitter are the same on every testnet;
// domains and token contracts differ per chain.
func DefaultTable() *Table {
	t := NewTable()
	t.Add("ethereum-sepolia", Endpoint{
		Token:              ethcommon.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
		TokenMessenger:     ethcommon.HexToAddress("0x8fe6b999dc680ccfdd5bf7eb0974218be2542daa"),
		MessageTransmitter: ethcommon.HexToAddress("0xe737e5cebeeba77efe34d4aa090756590b1ce275"),
		Domain:             0,
		ChainID:            11155111,
		ExplorerURL:        "https://sepolia.etherscan.io",
	})
	t.Add("avalanche-fuji", Endpoint{
		Token:              ethcommon.HexToAddress("0x5425890298aed601595a70AB815c96711a31Bc65"),
		TokenMessenger:     ethcommon.HexToAddress("0x8fe6b999dc680ccfdd5bf7eb0974218be2542daa"),
		MessageTransmitter: ethcommon.HexToAddress("0xe737e5cebeeba77efe34d4aa090756590b1ce275"),
		Domain:             1,
		ChainID:            43113,
		ExplorerURL:        "https://testnet.snowtrace.io",
	})
	t.Add("base-sepolia", Endpoint{
		Token:              ethcommon.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		TokenMessenger:     ethcommon.HexToAddress("0x8fe6b999dc680ccfdd5bf7eb0974218be2542daa"),
		MessageTransmitter: ethcommon.HexToAddress("0xe737e5cebeeba77efe34d4aa090756590b1ce275"),
		Domain:             6,
		ChainID:            84532,
		ExplorerURL:        "https://sepolia.basescan.org",
	})
	t.Add("linea-sepolia", Endpoint{
		Token:              ethcommon.HexToAddress("0xfece4462d57bd51a6a552365a011b95f0e16d9b7"),
		TokenMessenger:     ethcommon.HexToAddress("0x8fe6b999dc680ccfdd5bf7eb0974218be2542daa"),
		MessageTransmitter: ethcommon.HexToAddress("0xe737e5cebeeba77efe34d4aa090756590b1ce275"),
		Domain:             11,
		ChainID:            59141,
		ExplorerURL:        "https://sepolia.lineascan.build",
	})
	return t
}

// endpointSpec is the config-file shape of an Endpoint (all strings,
// easier to load from a file or env).
type endpointSpec struct {
	Token              string `mapstructure:"token"`
	TokenMessenger     string `mapstructure:"token_messenger"`
	MessageTransmitter string `mapstructure:"message_transmitter"`
	Domain             uint32 `mapstructure:"domain"`
	ChainID            int64  `mapstructure:"chain_id"`
	ExplorerURL        string `mapstructure:"explorer_url"`
}

// LoadOverrides merges the "chains" section of a viper config into the
// table. Entries replace built-ins with the same key, so an operator
// can point a key at a different deployment or add new chains.
func LoadOverrides(t *Table, v *viper.Viper) error {
	if !v.IsSet("chains") {
		return nil
	}
	specs := make(map[string]endpointSpec)
	if err := v.UnmarshalKey("chains", &specs); err != nil {
		return fmt.Errorf("bad chains section: %w", err)
	}
	for key, spec := range specs {
		if !ethcommon.IsHexAddress(spec.Token) ||
			!ethcommon.IsHexAddress(spec.TokenMessenger) ||
			!ethcommon.IsHexAddress(spec.MessageTransmitter) {
			return fmt.Errorf("chain %q has a malformed contract address", key)
		}
		t.Add(key, Endpoint{
			Token:              ethcommon.HexToAddress(spec.Token),
			TokenMessenger:     ethcommon.HexToAddress(spec.TokenMessenger),
			MessageTransmitter: ethcommon.HexToAddress(spec.MessageTransmitter),
			Domain:             spec.Domain,
			ChainID:            spec.ChainID,
			ExplorerURL:        spec.ExplorerURL,
		})
	}
	return nil
}
