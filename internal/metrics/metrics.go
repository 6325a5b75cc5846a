// Package metrics provides Prometheus metrics for transcode runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/hlsvariant/internal/events"
)

const namespace = "hlsvariant"

// VariantMetrics holds current values for one variant.
type VariantMetrics struct {
	Segments       int
	Bytes          int64
	Warnings       int
	LinkedStreams  int
	IgnoredStreams int
	Active         bool
}

// Recorder turns bus events into Prometheus metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	active      *prometheus.GaugeVec
	runDuration *prometheus.HistogramVec
	transitions *prometheus.HistogramVec
	segments    *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	linked      *prometheus.CounterVec
	ignored     *prometheus.CounterVec
	warnings    *prometheus.CounterVec

	// Local cache for the status API.
	mu    sync.RWMutex
	cache map[string]*VariantMetrics
}

// NewRecorder creates a recorder. Go runtime and process collectors are
// registered alongside the transcode metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cache:    make(map[string]*VariantMetrics),

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcode",
			Name:      "runs_total",
			Help:      "Finished transcode runs by result",
		}, []string{"variant", "result"}),

		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transcode",
			Name:      "active",
			Help:      "Whether a transcode is running for the variant",
		}, []string{"variant"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transcode",
			Name:      "duration_seconds",
			Help:      "Total run time from Playing request to Null",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"variant"}),

		transitions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "state_transition_seconds",
			Help:      "Time taken by pipeline state transitions",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"variant", "state"}),

		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "segments",
			Name:      "written_total",
			Help:      "Media segments written",
		}, []string{"variant"}),

		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "segments",
			Name:      "bytes_total",
			Help:      "Bytes of media segments written",
		}, []string{"variant"}),

		linked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "streams_linked_total",
			Help:      "Decoder streams routed into a branch",
		}, []string{"variant", "kind"}),

		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "streams_ignored_total",
			Help:      "Decoder streams dropped because their branch was already linked",
		}, []string{"variant", "kind"}),

		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "warnings_total",
			Help:      "Non-fatal pipeline warnings",
		}, []string{"variant"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runs, r.active, r.runDuration, r.transitions,
		r.segments, r.bytes, r.linked, r.ignored, r.warnings,
	)
	return r
}

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Subscribe attaches the recorder to bus. The returned function detaches it.
func (r *Recorder) Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(r.onStarted),
		bus.Subscribe(r.onStateChanged),
		bus.Subscribe(r.onStreamLinked),
		bus.Subscribe(r.onStreamIgnored),
		bus.Subscribe(r.onWarning),
		bus.Subscribe(r.onSegment),
		bus.Subscribe(r.onFinished),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (r *Recorder) onStarted(e events.TranscodeStartedEvent) {
	r.active.WithLabelValues(e.Variant).Set(1)
	r.update(e.Variant, func(m *VariantMetrics) { m.Active = true })
}

func (r *Recorder) onStateChanged(e events.StateChangedEvent) {
	r.transitions.WithLabelValues(e.Variant, e.To).Observe(e.Seconds)
}

func (r *Recorder) onStreamLinked(e events.StreamLinkedEvent) {
	r.linked.WithLabelValues(e.Variant, e.Kind).Inc()
	r.update(e.Variant, func(m *VariantMetrics) { m.LinkedStreams++ })
}

func (r *Recorder) onStreamIgnored(e events.StreamIgnoredEvent) {
	r.ignored.WithLabelValues(e.Variant, e.Kind).Inc()
	r.update(e.Variant, func(m *VariantMetrics) { m.IgnoredStreams++ })
}

func (r *Recorder) onWarning(e events.PipelineWarningEvent) {
	r.warnings.WithLabelValues(e.Variant).Inc()
	r.update(e.Variant, func(m *VariantMetrics) { m.Warnings++ })
}

func (r *Recorder) onSegment(e events.SegmentWrittenEvent) {
	if e.Playlist {
		return
	}
	r.segments.WithLabelValues(e.Variant).Inc()
	r.bytes.WithLabelValues(e.Variant).Add(float64(e.Size))
	r.update(e.Variant, func(m *VariantMetrics) {
		m.Segments++
		m.Bytes += e.Size
	})
}

func (r *Recorder) onFinished(e events.TranscodeFinishedEvent) {
	result := "success"
	if !e.Success {
		result = "failure"
	}
	r.runs.WithLabelValues(e.Variant, result).Inc()
	r.runDuration.WithLabelValues(e.Variant).Observe(e.ElapsedSeconds)
	r.active.WithLabelValues(e.Variant).Set(0)
	r.update(e.Variant, func(m *VariantMetrics) { m.Active = false })
}

// Variant returns current values for variant, or nil if nothing was recorded.
func (r *Recorder) Variant(variant string) *VariantMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.cache[variant]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func (r *Recorder) update(variant string, update func(*VariantMetrics)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.cache[variant]
	if !ok {
		m = &VariantMetrics{}
		r.cache[variant] = m
	}
	update(m)
}
