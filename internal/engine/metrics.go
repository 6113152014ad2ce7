package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"netbloom/internal/domain"
)

const namespace = "netbloom"

type metrics struct {
	cycles       prometheus.Counter
	skipped      prometheus.Counter
	dropped      prometheus.Counter
	rejected     prometheus.Counter
	loopback     prometheus.Counter
	nodes        *prometheus.GaugeVec
	edges        prometheus.Gauge
	alpha        prometheus.Gauge
	saves        prometheus.Counter
	saveFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, dataSource string) *metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"data_source": dataSource}

	return &metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help:        "Snapshots applied to the graph.",
			ConstLabels: labels,
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_skipped_total",
			Help:        "Cycles skipped because no snapshot was available.",
			ConstLabels: labels,
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "snapshots_dropped_total",
			Help:        "Snapshots dropped by the update throttle.",
			ConstLabels: labels,
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tuples_rejected_total",
			Help:        "Malformed connection tuples rejected by the normalizer.",
			ConstLabels: labels,
		}),
		loopback: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tuples_loopback_total",
			Help:        "Connection tuples dropped for a loopback endpoint.",
			ConstLabels: labels,
		}),
		nodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "graph_nodes",
			Help:        "Nodes in the graph by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		edges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "graph_edges",
			Help:        "Edges in the graph.",
			ConstLabels: labels,
		}),
		alpha: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "layout_alpha",
			Help:        "Current simulation energy.",
			ConstLabels: labels,
		}),
		saves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "position_saves_total",
			Help:        "Position save attempts.",
			ConstLabels: labels,
		}),
		saveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "position_save_failures_total",
			Help:        "Position saves that failed.",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) observeGraph(g *domain.Graph) {
	for _, kind := range []domain.NodeKind{domain.NodeKindHub, domain.NodeKindPort, domain.NodeKindIP} {
		m.nodes.WithLabelValues(string(kind)).Set(float64(g.CountKind(kind)))
	}
	m.edges.Set(float64(len(g.Edges)))
}
