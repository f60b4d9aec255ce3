package modem

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"i4.energy/across/sim800gw/at"
)

// Metrics holds the Prometheus collectors of a Modem. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Commands      *prometheus.CounterVec
	URCs          *prometheus.CounterVec
	BytesRead     prometheus.Counter
	BytesWritten  prometheus.Counter
	State         prometheus.Gauge
	Transfers     *prometheus.CounterVec
	TransferBytes *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sim800",
				Subsystem: "at",
				Name:      "commands_total",
				Help:      "AT commands issued, by command verb and outcome",
			},
			[]string{"command", "result"},
		),

		URCs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sim800",
				Subsystem: "at",
				Name:      "urcs_total",
				Help:      "Unsolicited result codes received",
			},
			[]string{"urc"},
		),

		BytesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sim800",
				Subsystem: "link",
				Name:      "read_bytes_total",
				Help:      "Bytes read from the modem link",
			},
		),

		BytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sim800",
				Subsystem: "link",
				Name:      "written_bytes_total",
				Help:      "Bytes written to the modem link",
			},
		),

		State: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sim800",
				Subsystem: "power",
				Name:      "state",
				Help:      "Power state (0=off, 1=booting, 2=ready, 3=shutting down)",
			},
		),

		Transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sim800",
				Subsystem: "transfer",
				Name:      "total",
				Help:      "Transfers by kind and outcome",
			},
			[]string{"kind", "result"},
		),

		TransferBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sim800",
				Subsystem: "transfer",
				Name:      "bytes_total",
				Help:      "Payload bytes moved by transfers",
			},
			[]string{"kind"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sim800",
				Subsystem: "sequence",
				Name:      "duration_seconds",
				Help:      "Duration of power and network sequences",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"sequence", "result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Commands,
			m.URCs,
			m.BytesRead,
			m.BytesWritten,
			m.State,
			m.Transfers,
			m.TransferBytes,
			m.StepDuration,
		)
	}
	return m
}

// RecordCommand counts one dispatched command.
func (m *Metrics) RecordCommand(verb string, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(verb, resultLabel(err)).Inc()
}

// RecordURC counts one unsolicited result code.
func (m *Metrics) RecordURC(u at.URC) {
	if m == nil {
		return
	}
	m.URCs.WithLabelValues(u.String()).Inc()
}

func (m *Metrics) RecordRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRead.Add(float64(n))
}

func (m *Metrics) RecordWrite(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesWritten.Add(float64(n))
}

// RecordState updates the power state gauge.
func (m *Metrics) RecordState(s State) {
	if m == nil {
		return
	}
	m.State.Set(float64(s))
}

// RecordTransfer counts a finished transfer and its payload size.
func (m *Metrics) RecordTransfer(kind string, n int64, err error) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(kind, resultLabel(err)).Inc()
	if n > 0 {
		m.TransferBytes.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordSequence observes how long a power or network sequence took.
func (m *Metrics) RecordSequence(name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(name, resultLabel(err)).Observe(d.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
