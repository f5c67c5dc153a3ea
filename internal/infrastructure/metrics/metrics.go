package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomdrop"

// Lookup outcomes.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupInvalid  = "invalid"
	LookupError    = "error"
)

// Metrics defines our Prometheus metrics
type Metrics struct {
	roomsCreated    prometheus.Counter
	codeCollisions  prometheus.Counter
	filesStored     prometheus.Counter
	uploadsFailed   *prometheus.CounterVec
	lookups         *prometheus.CounterVec
	roomsSwept      prometheus.Counter
	storeLatency    prometheus.Histogram
	requestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers every collector on a private registry so tests can build as many as they like.
func New() *Metrics {
	m := &Metrics{
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms committed to the registry.",
		}),
		codeCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_code_collisions_total",
			Help:      "Generated room codes that were already taken.",
		}),
		filesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_stored_total",
			Help:      "Files written to the content store.",
		}),
		uploadsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_failed_total",
			Help:      "Upload batches that did not produce a room.",
		}, []string{"reason"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_lookups_total",
			Help:      "Room retrievals by outcome.",
		}, []string{"result"}),
		roomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_swept_total",
			Help:      "Rooms removed by the background sweeper.",
		}),
		storeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_put_duration_seconds",
			Help:      "Time spent writing one file to the content store.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.roomsCreated,
		m.codeCollisions,
		m.filesStored,
		m.uploadsFailed,
		m.lookups,
		m.roomsSwept,
		m.storeLatency,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RoomCreated() {
	m.roomsCreated.Inc()
}

func (m *Metrics) CodeCollision() {
	m.codeCollisions.Inc()
}

func (m *Metrics) UploadFailed(reason string) {
	m.uploadsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) Lookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RoomsSwept(n int) {
	m.roomsSwept.Add(float64(n))
}

func (m *Metrics) FileStored(took time.Duration) {
	m.filesStored.Inc()
	m.storeLatency.Observe(took.Seconds())
}

func (m *Metrics) ObserveRequest(method, route, status string, took time.Duration) {
	m.requestDuration.WithLabelValues(method, route, status).Observe(took.Seconds())
}
