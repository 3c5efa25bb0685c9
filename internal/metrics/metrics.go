// Package metrics exposes Prometheus instruments for the document pipeline.
// A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfchat"

type Metrics struct {
	registry       *prometheus.Registry
	processRuns    *prometheus.CounterVec
	questions      *prometheus.CounterVec
	retries        *prometheus.CounterVec
	chunksIndexed  prometheus.Counter
	skippedFiles   prometheus.Counter
	askLatency     prometheus.Histogram
	processLatency prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		processRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_runs_total",
			Help:      "Process actions by outcome.",
		}, []string{"outcome"}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_call_retries_total",
			Help:      "Retried calls to hosted services.",
		}, []string{"service"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and stored.",
		}),
		skippedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_files_total",
			Help:      "Uploaded files that could not be read.",
		}),
		askLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_duration_seconds",
			Help:      "Time to answer one question.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		processLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_duration_seconds",
			Help:      "Time to ingest and index one document batch.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.processRuns, m.questions, m.retries,
		m.chunksIndexed, m.skippedFiles,
		m.askLatency, m.processLatency,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveProcess(outcome string, chunks, skipped int, d time.Duration) {
	if m == nil {
		return
	}
	m.processRuns.WithLabelValues(outcome).Inc()
	m.chunksIndexed.Add(float64(chunks))
	m.skippedFiles.Add(float64(skipped))
	m.processLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveQuestion(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(outcome).Inc()
	m.askLatency.Observe(d.Seconds())
}

func (m *Metrics) Retry(service string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(service).Inc()
}
