package analytics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Properties are the attributes attached to a tracked event.
type Properties map[string]string

// Property keys used as metric labels.
const (
	PropertyMethod = "method"
	PropertySource = "source"
)

// Emitter receives lifecycle milestones.
type Emitter interface {
	Track(name string, props Properties)
}

// Nop drops every event.
type Nop struct{}

// Track does nothing.
func (Nop) Track(string, Properties) {}

// PrometheusEmitter counts tracked events on its own registry.
type PrometheusEmitter struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
}

// NewPrometheusEmitter creates an emitter with a fresh registry.
func NewPrometheusEmitter() *PrometheusEmitter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusEmitter{
		registry: registry,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alarm_engine_events_total",
			Help: "Total number of alarm lifecycle events",
		}, []string{"event", PropertyMethod, PropertySource}),
	}
}

// Track increments the counter of the event.
func (e *PrometheusEmitter) Track(name string, props Properties) {
	e.events.WithLabelValues(name, props[PropertyMethod], props[PropertySource]).Inc()
}

// RegisterGauge exposes a value computed on every scrape.
func (e *PrometheusEmitter) RegisterGauge(name, help string, value func() float64) {
	promauto.With(e.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, value)
}

// Registry returns the registry metrics are registered on.
func (e *PrometheusEmitter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *PrometheusEmitter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Event is a tracked milestone kept by Recorder.
type Event struct {
	Name  string
	Props Properties
}

// Recorder keeps tracked events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Track appends the event.
func (r *Recorder) Track(name string, props Properties) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{Name: name, Props: props})
}

// Events returns tracked events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// Count returns how many events with the name were tracked.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0

	for _, event := range r.events {
		if event.Name == name {
			count++
		}
	}

	return count
}
