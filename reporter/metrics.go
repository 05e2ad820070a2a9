package reporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stablemesh-io/cctp-bridge-go/orchestrator"
)

// Metrics is the process-wide prometheus registry. It doubles as the
// orchestrator's Observer, so stage transitions count themselves.
type Metrics struct {
	registry              *prometheus.Registry
	transferStagesTotal   *prometheus.CounterVec
	transfersTotal        *prometheus.CounterVec
	receiptRetriesTotal   prometheus.Counter
	attestationPollsTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	stages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_transfer_stages_total",
		Help: "Stage transitions of transfer sagas",
	}, []string{"stage"})

	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_transfers_total",
		Help: "Transfers that reached a terminal stage",
	}, []string{"outcome"})

	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_receipt_retries_total",
		Help: "Retried mint receipt submissions",
	})

	attPolls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_attestation_polls_total",
		Help: "Queries against the attestation service",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(stages, transfers, retries, attPolls)

	return &Metrics{
		registry:              r,
		transferStagesTotal:   stages,
		transfersTotal:        transfers,
		receiptRetriesTotal:   retries,
		attestationPollsTotal: attPolls,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TransferStage implements orchestrator.Observer.
func (m *Metrics) TransferStage(_ string, stage orchestrator.Stage) {
	m.transferStagesTotal.WithLabelValues(string(stage)).Inc()
	if stage.Terminal() {
		m.transfersTotal.WithLabelValues(string(stage)).Inc()
	}
}

// ReceiptRetry matches receiptmgr's Config.Notify signature.
func (m *Metrics) ReceiptRetry(_ int, _ error) {
	m.receiptRetriesTotal.Inc()
}

// AttestationPoll matches attestation's PollerConfig.OnPoll signature.
func (m *Metrics) AttestationPoll() {
	m.attestationPollsTotal.Inc()
}
