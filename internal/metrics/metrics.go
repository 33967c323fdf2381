package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/track-market/internal/model"
)

const namespace = "market"

// Metrics holds all collectors. It implements ledger.Observer and
// poller.SnapshotHandler.
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	opTotal    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec

	eventsTotal  *prometheus.CounterVec
	copiesMinted prometheus.Counter
	copiesSold   prometheus.Counter
	saleVolume   prometheus.Counter
	feesTotal    prometheus.Counter

	activeListings  prometheus.Gauge
	listedCopies    prometheus.Gauge
	tracks          prometheus.Gauge
	unbalanced      prometheus.Gauge
	snapshotSeq     prometheus.Gauge
	snapshotTakenAt prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates Metrics on a fresh registry, including Go and process
// collectors.
func New(logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logger,

		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and result code",
		}, []string{"op", "code"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation duration in seconds, settlement included",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 0.1ms ~ 1.6s
		}, []string{"op"}),

		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "total",
			Help:      "Committed events by kind",
		}, []string{"kind"}),
		copiesMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copies_minted_total",
			Help:      "Copies minted across all tracks",
		}),
		copiesSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copies_sold_total",
			Help:      "Copies sold through the marketplace",
		}),
		saleVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_volume_total",
			Help:      "Sale payments in minor units",
		}),
		feesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_fees_total",
			Help:      "Platform fees in minor units",
		}),

		activeListings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "active_listings",
			Help:      "Active listings at the last snapshot",
		}),
		listedCopies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "listed_copies",
			Help:      "Unsold copies across active listings at the last snapshot",
		}),
		tracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "tracks",
			Help:      "Minted tracks at the last snapshot",
		}),
		unbalanced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "unbalanced_tracks",
			Help:      "Tracks whose summed balances differ from total supply",
		}),
		snapshotSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "seq",
			Help:      "Ledger seq covered by the last snapshot",
		}),
		snapshotTakenAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "taken_at_seconds",
			Help:      "Unix time of the last snapshot",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.opTotal,
		m.opDuration,
		m.eventsTotal,
		m.copiesMinted,
		m.copiesSold,
		m.saleVolume,
		m.feesTotal,
		m.activeListings,
		m.listedCopies,
		m.tracks,
		m.unbalanced,
		m.snapshotSeq,
		m.snapshotTakenAt,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOp records one ledger operation.
func (m *Metrics) ObserveOp(op string, err error, d time.Duration) {
	code := "ok"
	if err != nil {
		code = model.ErrorCode(err)
	}
	m.opTotal.WithLabelValues(op, code).Inc()
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveEvent records one committed event.
func (m *Metrics) ObserveEvent(ev model.Event) {
	m.eventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	switch data := ev.Data.(type) {
	case *model.Minted:
		m.copiesMinted.Add(float64(data.TotalSupply))
	case *model.ItemSold:
		m.copiesSold.Add(float64(data.Quantity))
		m.saleVolume.Add(float64(data.Payment))
		m.feesTotal.Add(float64(data.Fee))
	}
}

// HandleSnapshot updates the snapshot gauges.
func (m *Metrics) HandleSnapshot(ctx context.Context, snap model.Snapshot) error {
	var listed uint64
	for _, l := range snap.ActiveListings {
		listed += l.Remaining()
	}
	var unbalanced int
	for _, a := range snap.Supply {
		if !a.Balanced() {
			unbalanced++
		}
	}

	m.activeListings.Set(float64(len(snap.ActiveListings)))
	m.listedCopies.Set(float64(listed))
	m.tracks.Set(float64(len(snap.Supply)))
	m.unbalanced.Set(float64(unbalanced))
	m.snapshotSeq.Set(float64(snap.Seq))
	m.snapshotTakenAt.Set(float64(snap.TakenAt.Unix()))
	return nil
}
