package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_ingest_total",
		Help: "Ingest requests by document kind and result.",
	}, []string{"kind", "result"})

	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contract_ingest_duration_seconds",
		Help:    "End-to-end ingest latency including extraction and LLM calls.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})

	MergeChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_merge_changes_total",
		Help: "Changes processed by the merge engine, by outcome.",
	}, []string{"outcome"})

	UpstreamAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_upstream_attempts_total",
		Help: "Calls to extraction and LLM collaborators, by service and result.",
	}, []string{"service", "result"})
)

const (
	OutcomeApplied   = "applied"
	OutcomeUnmatched = "unmatched"
	OutcomeAmbiguous = "ambiguous"
	OutcomeSkipped   = "skipped"
)
