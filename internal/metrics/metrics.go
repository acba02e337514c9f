// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes decoded VESC telemetry as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

const namespace = "vesc"

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics holds the bus and telemetry metrics.
type Metrics struct {
	Frames       *prometheus.CounterVec // labels: kind=status|command|unknown
	DecodeErrors *prometheus.CounterVec // labels: type
	BusErrors    prometheus.Counter
	Anomalies    *prometheus.CounterVec // labels: node, anomaly
	LastSeen     *prometheus.GaugeVec   // labels: node

	fields map[string]*prometheus.GaugeVec // field key -> gauge, labels: node
}

// New registers and returns the metrics. Every status field gets its own
// gauge, named after the field and its unit.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "CAN frames received, by kind.",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Status frames with a truncated payload, by status type.",
		}, []string{"type"}),
		BusErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_errors_total",
			Help:      "Transport receive errors.",
		}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Implausible telemetry values, by node and anomaly.",
		}, []string{"node", "anomaly"}),
		LastSeen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_seen_timestamp_seconds",
			Help:      "Unix time of the last status frame from a node.",
		}, []string{"node"}),
		fields: make(map[string]*prometheus.GaugeVec),
	}
	reg.MustRegister(m.Frames, m.DecodeErrors, m.BusErrors, m.Anomalies, m.LastSeen)

	for _, proto := range []vesc.Record{
		vesc.Status{}, vesc.Status2{}, vesc.Status3{},
		vesc.Status4{}, vesc.Status5{}, vesc.Status6{},
	} {
		for _, f := range vesc.Fields(proto) {
			g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      MetricName(f),
				Help:      "Latest " + f.Key + " reported in " + vesc.FormatStatusType(proto.MsgType()) + ".",
			}, []string{"node"})
			reg.MustRegister(g)
			m.fields[f.Key] = g
		}
	}

	return m
}

// MetricName returns the metric name (without namespace) of a field.
func MetricName(f vesc.Field) string {
	switch f.Unit {
	case "A":
		return f.Key + "_amperes"
	case "V":
		return f.Key + "_volts"
	case "°C":
		return f.Key + "_celsius"
	}
	return f.Key
}

// Observe accounts one receive result. err is the receive or decode error,
// rec the decoded record (nil for non-status frames).
func (m *Metrics) Observe(f vesc.Frame, rec vesc.Record, err error, anomalies []vesc.ValidationError) {
	if err != nil {
		var formatErr *vesc.FormatError
		if errors.As(err, &formatErr) {
			m.DecodeErrors.WithLabelValues(vesc.StatusTopicName(formatErr.Type)).Inc()
		} else {
			m.BusErrors.Inc()
		}
		return
	}

	if rec == nil {
		if f.IsCommand() {
			m.Frames.WithLabelValues("command").Inc()
		} else {
			m.Frames.WithLabelValues("unknown").Inc()
		}
		return
	}

	m.Frames.WithLabelValues("status").Inc()
	node := strconv.Itoa(int(rec.Node()))

	for _, field := range vesc.Fields(rec) {
		if g, ok := m.fields[field.Key]; ok {
			g.WithLabelValues(node).Set(field.Value)
		}
	}

	if !f.Timestamp.IsZero() {
		m.LastSeen.WithLabelValues(node).Set(float64(f.Timestamp.UnixNano()) / 1e9)
	}

	for _, a := range anomalies {
		m.Anomalies.WithLabelValues(node, AnomalyName(a.Type)).Inc()
	}
}

// AnomalyName returns the label value of an anomaly type.
func AnomalyName(t vesc.AnomalyType) string {
	switch t {
	case vesc.AnomalyFormatError:
		return "format_error"
	case vesc.AnomalyInvalidTemp:
		return "invalid_temp"
	case vesc.AnomalyInvalidVoltage:
		return "invalid_voltage"
	case vesc.AnomalyInvalidDuty:
		return "invalid_duty"
	case vesc.AnomalyHighCurrent:
		return "high_current"
	case vesc.AnomalyInvalidADC:
		return "invalid_adc"
	}
	return "unknown"
}
