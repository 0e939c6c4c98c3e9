package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a shared handle for counters both transport variants increment
// as they run. It is safe for concurrent use by any number of connections.
// The zero value is not usable; use NewMetrics. BytesSent and BytesReceived
// are registered but neither transport variant increments them.
type Metrics struct {
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	BytesSent      *prometheus.CounterVec
	BytesReceived  *prometheus.CounterVec
	RawFrames      *prometheus.CounterVec
	ShortSends     *prometheus.CounterVec
	ConnsOpen      *prometheus.GaugeVec
}

// NewMetrics creates and registers a Metrics handle against reg. Passing a
// fresh prometheus.NewRegistry() is recommended for tests, to avoid
// colliding with other Metrics instances registered against the default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Name:      "frames_sent_total",
			Help:      "Frames written to a transport, by kind.",
		}, []string{"kind"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Name:      "frames_received_total",
			Help:      "Frames decoded from a transport, by kind.",
		}, []string{"kind"}),
		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Name:      "bytes_sent_total",
			Help:      "Wire bytes written to a transport, by kind.",
		}, []string{"kind"}),
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Name:      "bytes_received_total",
			Help:      "Wire bytes read from a transport, by kind.",
		}, []string{"kind"}),
		RawFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Name:      "raw_frames_total",
			Help:      "Raw frames decoded (pass-through, unknown-tag or truncated), by kind.",
		}, []string{"kind"}),
		ShortSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcore",
			Name:      "short_sends_total",
			Help:      "Underlying writes that did not accept the full encoded frame in one call, by kind.",
		}, []string{"kind"}),
		ConnsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netcore",
			Name:      "connections_open",
			Help:      "Currently open connections, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.FramesSent, m.FramesReceived, m.BytesSent, m.BytesReceived, m.RawFrames, m.ShortSends, m.ConnsOpen)
	return m
}
