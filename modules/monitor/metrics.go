package monitor

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	connects       *prometheus.CounterVec
	readBytes      *prometheus.CounterVec
	framesDecoded  *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec
	trackChanges   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icystream",
			Subsystem: "monitor",
			Name:      "connects_total",
			Help:      "Times a station stream was connected, reconnects included.",
		}, []string{"station"}),
		readBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icystream",
			Subsystem: "monitor",
			Name:      "read_bytes_total",
			Help:      "Audio bytes read from a station stream.",
		}, []string{"station"}),
		framesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icystream",
			Subsystem: "monitor",
			Name:      "frames_decoded_total",
			Help:      "In-stream metadata frames decoded.",
		}, []string{"station"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icystream",
			Subsystem: "monitor",
			Name:      "decode_failures_total",
			Help:      "In-stream metadata frames that failed to decode.",
		}, []string{"station"}),
		trackChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icystream",
			Subsystem: "monitor",
			Name:      "track_changes_total",
			Help:      "Track changes observed on a station stream.",
		}, []string{"station"}),
	}

	if reg != nil {
		reg.MustRegister(m.connects, m.readBytes, m.framesDecoded, m.decodeFailures, m.trackChanges)
	}

	return m
}
