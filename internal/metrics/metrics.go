// Package metrics exposes the prometheus instrumentation for the ingestion
// pipeline and validator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the system registers. All components share
// one instance so the registry stays process-wide without package globals.
type Metrics struct {
	registry *prometheus.Registry

	LedgersIngested    prometheus.Counter
	LedgersFailed      prometheus.Counter
	LedgersReimported  prometheus.Counter
	TransactionsParsed prometheus.Counter
	TransactionRetries prometheus.Counter
	EventsEmitted      *prometheus.CounterVec
	PendingLedgers     prometheus.Gauge
	ValidatedIndex     prometheus.Gauge
	ValidatorMismatch  prometheus.Counter
}

// New builds and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LedgersIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrplhist",
			Name:      "ledgers_ingested_total",
			Help:      "Ledgers fully persisted.",
		}),
		LedgersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrplhist",
			Name:      "ledgers_failed_total",
			Help:      "Ledgers abandoned after exhausting the retry budget.",
		}),
		LedgersReimported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrplhist",
			Name:      "ledgers_reimported_total",
			Help:      "Re-import requests issued by the validator.",
		}),
		TransactionsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrplhist",
			Name:      "transactions_parsed_total",
			Help:      "Transactions decomposed into derived events.",
		}),
		TransactionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrplhist",
			Name:      "transaction_retries_total",
			Help:      "Per-transaction persistence retries.",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xrplhist",
			Name:      "events_emitted_total",
			Help:      "Derived events emitted to downstream streams.",
		}, []string{"stream"}),
		PendingLedgers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xrplhist",
			Name:      "pending_ledgers",
			Help:      "Ledgers currently tracked as in flight.",
		}),
		ValidatedIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xrplhist",
			Name:      "validated_ledger_index",
			Help:      "Last ledger index proven hash-chain correct.",
		}),
		ValidatorMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrplhist",
			Name:      "validator_mismatches_total",
			Help:      "Hash mismatches detected by the validator.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LedgersIngested,
		m.LedgersFailed,
		m.LedgersReimported,
		m.TransactionsParsed,
		m.TransactionRetries,
		m.EventsEmitted,
		m.PendingLedgers,
		m.ValidatedIndex,
		m.ValidatorMismatch,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
