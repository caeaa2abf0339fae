// Package metrics holds the Prometheus instrumentation for synthesis, video
// jobs and the HTTP API.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "genstudio"

// Metrics contains all collectors of the service.
type Metrics struct {
	registry *prometheus.Registry

	// Speech synthesis
	SynthesisRequests *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
	MergedClips       prometheus.Counter

	// Video generation
	VideoJobs        *prometheus.CounterVec
	VideoJobDuration prometheus.Histogram

	// HTTP API
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveStreams       prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SynthesisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_chunks_total",
			Help:      "Synthesized text chunks by outcome",
		}, []string{"outcome"}),
		SynthesisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_chunk_duration_seconds",
			Help:      "Time spent synthesizing one chunk",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),
		MergedClips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_clips_total",
			Help:      "Clips concatenated into merged audio",
		}),

		VideoJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_jobs_total",
			Help:      "Video generation jobs by outcome",
		}, []string{"outcome"}),
		VideoJobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "video_job_duration_seconds",
			Help:      "Time from job submission to downloaded video",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 8), // 10s to ~21 minutes
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Open progressive speech streams",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSynthesis records one chunk synthesis.
func (m *Metrics) ObserveSynthesis(elapsed time.Duration, err error) {
	m.SynthesisRequests.WithLabelValues(outcome(err)).Inc()
	m.SynthesisDuration.Observe(elapsed.Seconds())
}

// ObserveMerge records how many clips went into a merged file.
func (m *Metrics) ObserveMerge(clips int) {
	m.MergedClips.Add(float64(clips))
}

// ObserveVideoJob records one finished video job.
func (m *Metrics) ObserveVideoJob(elapsed time.Duration, err error) {
	m.VideoJobs.WithLabelValues(outcome(err)).Inc()
	m.VideoJobDuration.Observe(elapsed.Seconds())
}

// StreamOpened and StreamClosed track open progressive streams.
func (m *Metrics) StreamOpened() { m.ActiveStreams.Inc() }

func (m *Metrics) StreamClosed() { m.ActiveStreams.Dec() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through; the upgrade counts as 101.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", r.ResponseWriter)
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Instrument wraps next and records request count and latency under route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
