package obs

import (
	"net/http"
	"time"

	"marketfeed/internal/model/enum"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WriteErrorKind groups failed writes by how the drain worker treats them.
type WriteErrorKind string

const (
	WriteErrorUnavailable WriteErrorKind = "unavailable"
	WriteErrorRejected    WriteErrorKind = "rejected"
	WriteErrorDeadLetter  WriteErrorKind = "dead_letter"
)

const DefaultPrefix = "marketfeed_"

// Metrics collects pipeline counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	persisted    *prometheus.CounterVec
	writeErrors  *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	backlog      *prometheus.GaugeVec
	drainPass    *prometheus.HistogramVec
	appended     *prometheus.CounterVec
}

// NewMetrics allocates a metrics container whose names start with prefix.
func NewMetrics(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := []string{"category"}

	return &Metrics{
		registry: reg,
		persisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "records_persisted_total",
			Help: "Number of records durably written to the store",
		}, labels),
		writeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "write_errors_total",
			Help: "Number of failed record writes grouped by error kind",
		}, []string{"category", "kind"}),
		deadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "records_dead_lettered_total",
			Help: "Number of records moved to the dead-letter set",
		}, labels),
		backlog: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "backlog_depth",
			Help: "Records left in the buffer after the last drain pass",
		}, labels),
		drainPass: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "drain_pass_seconds",
			Help:    "Duration of one drain pass",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, labels),
		appended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "records_fetched_total",
			Help: "Number of records appended by producers",
		}, labels),
	}
}

// IncPersisted records a successful write.
func (m *Metrics) IncPersisted(c enum.Category) {
	if m == nil {
		return
	}
	m.persisted.WithLabelValues(c.String()).Inc()
}

// IncWriteError records a failed write.
func (m *Metrics) IncWriteError(c enum.Category, kind WriteErrorKind) {
	if m == nil {
		return
	}
	m.writeErrors.WithLabelValues(c.String(), string(kind)).Inc()
}

// IncDeadLettered records a record moved to the dead-letter set.
func (m *Metrics) IncDeadLettered(c enum.Category) {
	if m == nil {
		return
	}
	m.deadLettered.WithLabelValues(c.String()).Inc()
}

// IncFetched records a record appended by a producer.
func (m *Metrics) IncFetched(c enum.Category) {
	if m == nil {
		return
	}
	m.appended.WithLabelValues(c.String()).Inc()
}

// SetBacklog reports the buffer depth after a drain pass.
func (m *Metrics) SetBacklog(c enum.Category, depth int) {
	if m == nil {
		return
	}
	m.backlog.WithLabelValues(c.String()).Set(float64(depth))
}

// ObserveDrainPass measures one drain pass.
func (m *Metrics) ObserveDrainPass(c enum.Category, d time.Duration) {
	if m == nil || d < 0 {
		return
	}
	m.drainPass.WithLabelValues(c.String()).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
