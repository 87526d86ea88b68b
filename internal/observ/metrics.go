package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics is a small in-process registry: counters, gauges, and raw
// histogram observations, each keyed by name plus canonicalized labels.
// One run per day does not warrant a metrics server; the registry dumps as
// JSON into the run summary and over the debug endpoint.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]map[string]int64
	gauges   map[string]map[string]float64
	hist     map[string]map[string][]float64
}

// NewMetrics creates an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: map[string]map[string]int64{},
		gauges:   map[string]map[string]float64{},
		hist:     map[string]map[string][]float64{},
	}
}

// canonLabels renders a label map with sorted keys so equal label sets
// always map to the same series.
func canonLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

// IncCounter adds 1 to a counter series.
func (m *Metrics) IncCounter(name string, labels map[string]string) {
	m.AddCounter(name, labels, 1)
}

// AddCounter adds n to a counter series.
func (m *Metrics) AddCounter(name string, labels map[string]string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series, ok := m.counters[name]
	if !ok {
		series = map[string]int64{}
		m.counters[name] = series
	}
	series[canonLabels(labels)] += n
}

// SetGauge sets a gauge series to a value.
func (m *Metrics) SetGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series, ok := m.gauges[name]
	if !ok {
		series = map[string]float64{}
		m.gauges[name] = series
	}
	series[canonLabels(labels)] = value
}

// Observe appends a histogram observation.
func (m *Metrics) Observe(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series, ok := m.hist[name]
	if !ok {
		series = map[string][]float64{}
		m.hist[name] = series
	}
	key := canonLabels(labels)
	series[key] = append(series[key], value)
}

// ObserveDuration appends a duration observation in milliseconds.
func (m *Metrics) ObserveDuration(name string, d time.Duration, labels map[string]string) {
	m.Observe(name+"_ms", float64(d.Milliseconds()), labels)
}

// Counter reads a counter series, 0 if absent.
func (m *Metrics) Counter(name string, labels map[string]string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name][canonLabels(labels)]
}

// Gauge reads a gauge series, 0 if absent.
func (m *Metrics) Gauge(name string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name][canonLabels(labels)]
}

type metricsDump struct {
	Counters map[string]map[string]int64     `json:"counters"`
	Gauges   map[string]map[string]float64   `json:"gauges"`
	Hist     map[string]map[string][]float64 `json:"histograms"`
}

// Snapshot returns the registry as a JSON-marshalable value.
func (m *Metrics) Snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := metricsDump{
		Counters: map[string]map[string]int64{},
		Gauges:   map[string]map[string]float64{},
		Hist:     map[string]map[string][]float64{},
	}
	for name, series := range m.counters {
		copied := map[string]int64{}
		for k, v := range series {
			copied[k] = v
		}
		out.Counters[name] = copied
	}
	for name, series := range m.gauges {
		copied := map[string]float64{}
		for k, v := range series {
			copied[k] = v
		}
		out.Gauges[name] = copied
	}
	for name, series := range m.hist {
		copied := map[string][]float64{}
		for k, v := range series {
			copied[k] = append([]float64(nil), v...)
		}
		out.Hist[name] = copied
	}
	return out
}

// Handler serves the registry as JSON. Deliberately not Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
