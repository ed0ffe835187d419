package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the controller's prometheus instruments. A nil *Metrics is
// valid and turns every recording call into a no-op.
type Metrics struct {
	registry *prometheus.Registry

	framesDecoded       prometheus.Counter
	frameDecodeFailures prometheus.Counter
	readingsDropped     prometheus.Counter
	alarmsRaised        prometheus.Counter
	alarmsCleared       prometheus.Counter
	uplinkPacketsSent   prometheus.Counter
	uplinkSendFailures  prometheus.Counter
	modulesOnline       prometheus.Gauge
	uplinkConnected     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.framesDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydronutri_frames_decoded_total",
		Help: "Bus frames decoded and applied to the snapshot.",
	})
	m.frameDecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydronutri_frame_decode_failures_total",
		Help: "Bus frames rejected for length or checksum errors.",
	})
	m.readingsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydronutri_readings_dropped_total",
		Help: "Frames with unknown (source, command) pairs, dropped silently.",
	})
	m.alarmsRaised = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydronutri_alarms_raised_total",
		Help: "Alarm raise transitions.",
	})
	m.alarmsCleared = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydronutri_alarms_cleared_total",
		Help: "Alarm clear transitions.",
	})
	m.uplinkPacketsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydronutri_uplink_packets_sent_total",
		Help: "Status packets transmitted to the supervisor.",
	})
	m.uplinkSendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydronutri_uplink_send_failures_total",
		Help: "Status packet transmissions that failed.",
	})
	m.modulesOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydronutri_modules_online",
		Help: "Number of peripheral modules currently within the liveness window.",
	})
	m.uplinkConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydronutri_uplink_connected",
		Help: "1 when the uplink is connected, 0 otherwise.",
	})

	m.registry.MustRegister(
		m.framesDecoded, m.frameDecodeFailures, m.readingsDropped,
		m.alarmsRaised, m.alarmsCleared,
		m.uplinkPacketsSent, m.uplinkSendFailures,
		m.modulesOnline, m.uplinkConnected,
	)
	return m
}

// Handler exposes the registry for an HTTP /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncFramesDecoded() {
	if m != nil {
		m.framesDecoded.Inc()
	}
}

func (m *Metrics) IncFrameDecodeFailures() {
	if m != nil {
		m.frameDecodeFailures.Inc()
	}
}

func (m *Metrics) IncReadingsDropped() {
	if m != nil {
		m.readingsDropped.Inc()
	}
}

func (m *Metrics) IncAlarmsRaised() {
	if m != nil {
		m.alarmsRaised.Inc()
	}
}

func (m *Metrics) IncAlarmsCleared() {
	if m != nil {
		m.alarmsCleared.Inc()
	}
}

func (m *Metrics) IncUplinkPacketsSent() {
	if m != nil {
		m.uplinkPacketsSent.Inc()
	}
}

func (m *Metrics) IncUplinkSendFailures() {
	if m != nil {
		m.uplinkSendFailures.Inc()
	}
}

func (m *Metrics) SetModulesOnline(n int) {
	if m != nil {
		m.modulesOnline.Set(float64(n))
	}
}

func (m *Metrics) SetUplinkConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.uplinkConnected.Set(1)
	} else {
		m.uplinkConnected.Set(0)
	}
}
