package attestation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablemesh-io/cctp-bridge-go/agreement"
)

var fastCfg = PollerConfig{
	PollInterval: time.Millisecond,
	Timeout:      time.Second,
}

var burnTx = ethcommon.HexToHash("0xbbbb")

func TestAwaitAttestationsReadyAfterNotReady(t *testing.T) {
	reader := NewSimulatedReader()
	want := ReadyAttestations(3)
	reader.ScriptNotReady(burnTx)
	reader.ScriptReady(burnTx, want)

	got, err := NewPoller(reader, fastCfg).AwaitAttestations(context.Background(), 0, burnTx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAwaitAttestationsNeverReturnsPartial(t *testing.T) {
	reader := NewSimulatedReader()
	want := ReadyAttestations(4)
	reader.ScriptPartial(burnTx, want, 2)
	reader.ScriptPartial(burnTx, want, 3)
	reader.ScriptReady(burnTx, want)

	got, err := NewPoller(reader, fastCfg).AwaitAttestations(context.Background(), 0, burnTx)
	require.NoError(t, err)

	// only the fully signed set comes back, in emission order
	assert.Equal(t, want, got)
	for i := range got {
		assert.True(t, got[i].Ready())
	}
}

func TestAwaitAttestationsServerErrorIsTransient(t *testing.T) {
	reader := NewSimulatedReader()
	want := ReadyAttestations(1)
	reader.ScriptError(burnTx, errors.New("http 500"))
	reader.ScriptError(burnTx, errors.New("http 502"))
	reader.ScriptReady(burnTx, want)

	got, err := NewPoller(reader, fastCfg).AwaitAttestations(context.Background(), 0, burnTx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAwaitAttestationsTimeout(t *testing.T) {
	reader := NewSimulatedReader()
	reader.ScriptNotReady(burnTx)

	cfg := fastCfg
	cfg.Timeout = 20 * time.Millisecond
	_, err := NewPoller(reader, cfg).AwaitAttestations(context.Background(), 0, burnTx)
	require.Error(t, err)
	assert.True(t, agreement.IsKind(err, agreement.PollingTimeout))
	assert.False(t, agreement.IsKind(err, agreement.OnchainFailure))
}

func TestAwaitAttestationsCancelled(t *testing.T) {
	reader := NewSimulatedReader()
	reader.ScriptNotReady(burnTx)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPoller(reader, fastCfg).AwaitAttestations(ctx, 0, burnTx)
	require.Error(t, err)
	assert.True(t, agreement.IsKind(err, agreement.Cancelled))
}

func TestClientParsesMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/messages/6", r.URL.Path)
		assert.Equal(t, burnTx.Hex(), r.URL.Query().Get("transactionHash"))
		w.Write([]byte(`{"messages":[
			{"status":"complete","message":"0x01","attestation":"0xaa"},
			{"status":"pending_confirmations","message":"0x02","attestation":"PENDING"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	atts, err := c.Attestations(context.Background(), 6, burnTx)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.True(t, atts[0].Ready())
	assert.False(t, atts[1].Ready())
}

func TestClientNotReadyStatuses(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusAccepted} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c := NewClient(Config{BaseURL: srv.URL})
		_, err := c.Attestations(context.Background(), 0, burnTx)
		assert.ErrorIs(t, err, ErrNotReady)
		srv.Close()
	}
}

func TestClientEmptyMessagesNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Attestations(context.Background(), 0, burnTx)
	assert.ErrorIs(t, err, ErrNotReady)
}
