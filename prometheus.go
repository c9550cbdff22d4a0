package main

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus instrumentation. The metrics endpoint is optional; the
// collectors below are always live and essentially free when nobody
// scrapes them.

var (
	metricDiscoveryResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hpsdr_discovery_responses_total",
		Help: "Discovery responses received, by protocol",
	}, []string{"protocol"})

	metricWirePacketsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hpsdr_wire_packets_in_total",
		Help: "Wire protocol packets received from the radio",
	}, []string{"protocol"})

	metricWirePacketsOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hpsdr_wire_packets_out_total",
		Help: "Wire protocol packets sent to the radio",
	}, []string{"protocol"})

	metricSequenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hpsdr_sequence_errors_total",
		Help: "Sequence number gaps seen on the RX stream",
	})

	metricRemoteBytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hpsdr_remote_bytes_out_total",
		Help: "Bytes written on the client/server link",
	})

	metricRemoteBytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hpsdr_remote_bytes_in_total",
		Help: "Bytes read on the client/server link",
	})

	metricRemoteResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hpsdr_remote_resyncs_total",
		Help: "Sync-pattern losses on the client/server link",
	})

	metricRemoteSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hpsdr_remote_sessions",
		Help: "Authenticated remote sessions (0 or 1)",
	})

	metricSpectrumFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hpsdr_spectrum_frames_total",
		Help: "Spectrum frames streamed to the remote client, by receiver",
	}, []string{"rx"})

	metricCWEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hpsdr_cw_events_dropped_total",
		Help: "CW key events dropped because the event ring was near full",
	})

	metricTxFifoEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hpsdr_tx_fifo_events_total",
		Help: "TX FIFO underruns and overruns reported by the radio",
	}, []string{"kind"})
)

// StartMetricsServer exposes /metrics on the configured listen
// address. Errors are logged, not fatal: the radio runs fine
// without scraping.
func StartMetricsServer(listen string) {
	if listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: listening on %s", listen)
		if err := http.ListenAndServe(listen, mux); err != nil {
			log.Printf("metrics: server stopped: %v", err)
		}
	}()
}
