package app

import (
	"sync/atomic"

	"dht11/pkg/dht11"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics to expose to Prometheus
type metrics struct {
	registry    *prometheus.Registry
	humidity    prometheus.Gauge
	temperature prometheus.Gauge
	reads       prometheus.Counter
	errors      *prometheus.CounterVec

	// totals for the health report
	readCount  atomic.Int64
	errorCount atomic.Int64
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dht11_humidity_percent",
			Help: "Humidity (units: % of relative Humidity)",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dht11_temperature_celsius",
			Help: "Air Temperature (units: degrees Celsius)",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dht11_reads_total",
			Help: "Sensor transactions started",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht11_read_errors_total",
			Help: "Failed sensor transactions by error kind",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(m.humidity, m.temperature, m.reads, m.errors)
	// Add Go module build info.
	m.registry.MustRegister(collectors.NewBuildInfoCollector())
	return m
}

// observe counts a transaction and its error.
func (m *metrics) observe(err error) {
	m.reads.Inc()
	m.readCount.Add(1)
	if err != nil {
		m.errors.WithLabelValues(dht11.Kind(err)).Inc()
		m.errorCount.Add(1)
	}
}

func (m *metrics) set(r Reading) {
	m.humidity.Set(r.Humidity)
	m.temperature.Set(r.Temperature)
}
