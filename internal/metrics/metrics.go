package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vehicle_parking/internal/domain"
)

// Metrics holds the Prometheus collectors of the parking service.
//
// Metrics:
//   - parking_http_requests_total{method,route,status}
//   - parking_http_request_duration_seconds{method,route}
//   - parking_reservations_total{outcome}
//   - parking_events_published_total{backend,result}
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ReservationsTotal *prometheus.CounterVec

	EventsPublishedTotal *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parking_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ReservationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_reservations_total",
				Help: "Reservation lifecycle outcomes",
			},
			[]string{"outcome"}, // created, completed, cancelled, no_vacancy
		),
		EventsPublishedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_events_published_total",
				Help: "Reservation events handed to a publisher",
			},
			[]string{"backend", "result"},
		),
	}
}

// ObserveReservation is nil-safe so services can run without metrics.
func (m *Metrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePublish(backend string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublishedTotal.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// OccupancySource returns the current per-plot slot counts.
type OccupancySource func(ctx context.Context) ([]domain.PlotOccupancy, error)

// OccupancyCollector recomputes slot occupancy on every scrape instead of
// keeping gauges in sync with slot mutations.
type OccupancyCollector struct {
	source   OccupancySource
	timeout  time.Duration
	occupied *prometheus.Desc
	vacant   *prometheus.Desc
}

func NewOccupancyCollector(source OccupancySource) *OccupancyCollector {
	return &OccupancyCollector{
		source:   source,
		timeout:  5 * time.Second,
		occupied: prometheus.NewDesc("parking_slots_occupied", "Occupied slots per plot", []string{"plot_id"}, nil),
		vacant:   prometheus.NewDesc("parking_slots_vacant", "Vacant slots per plot", []string{"plot_id"}, nil),
	}
}

func (c *OccupancyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.occupied
	ch <- c.vacant
}

func (c *OccupancyCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	plots, err := c.source(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.occupied, err)
		return
	}
	for _, p := range plots {
		id := strconv.Itoa(p.PlotID)
		ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(p.Occupied), id)
		ch <- prometheus.MustNewConstMetric(c.vacant, prometheus.GaugeValue, float64(p.Vacant), id)
	}
}
