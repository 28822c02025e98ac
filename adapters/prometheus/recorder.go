// Package prometheus exposes runner metrics through client_golang collectors.
package prometheus

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-vaultrest/core"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vaultrest"

var dispatchLabels = []string{"resource", "operation", "status"}

// Recorder implements core.MetricsRecorder. The runner's metrics get fixed
// label sets, any other name gets a collector labelled by the sorted tag keys
// of its first observation.
type Recorder struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewRecorder registers collectors with registerer, or the default registry
// when nil.
func NewRecorder(registerer prometheus.Registerer) (*Recorder, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		labels:     map[string][]string{},
	}
	if _, err := r.counter(core.MetricDispatchTotal, dispatchLabels); err != nil {
		return nil, err
	}
	if _, err := r.histogram(core.MetricDispatchDurationMS, dispatchLabels); err != nil {
		return nil, err
	}
	if _, err := r.counter(core.MetricBatchTotal, dispatchLabels); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec, err := r.counter(name, tagKeys(tags))
	if err != nil {
		return
	}
	labels := r.labelValues(name, tags)
	vec.WithLabelValues(labels...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec, err := r.histogram(name, tagKeys(tags))
	if err != nil {
		return
	}
	vec.WithLabelValues(r.labelValues(name, tags)...).Observe(value)
}

func (r *Recorder) counter(name string, labels []string) (*prometheus.CounterVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      metricName(name),
		Help:      "Counter for " + name,
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	r.counters[name] = vec
	r.labels[name] = labels
	return vec, nil
}

func (r *Recorder) histogram(name string, labels []string) (*prometheus.HistogramVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      metricName(name),
		Help:      "Histogram for " + name,
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	r.histograms[name] = vec
	r.labels[name] = labels
	return vec, nil
}

// labelValues orders tags by the label set the collector was created with.
// Missing tags become empty values and extra tags are dropped.
func (r *Recorder) labelValues(name string, tags map[string]string) []string {
	r.mu.Lock()
	labels := r.labels[name]
	r.mu.Unlock()
	values := make([]string, len(labels))
	for idx, label := range labels {
		values[idx] = tags[label]
	}
	return values
}

// metricName strips the namespace prefix and maps dots to underscores, so
// "vaultrest.dispatch.total" becomes "dispatch_total".
func metricName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), namespace+".")
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

func tagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ core.MetricsRecorder = (*Recorder)(nil)
