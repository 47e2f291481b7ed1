// Prometheus exposition for the atomic counter blocks kept by the data and
// control paths. Counters are written lock-free on the hot path; collectors
// only ever load them.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"streammux/internal/conductor"
	"streammux/internal/ringbuf"
	"streammux/pkg/mux"
)

// Joins a namespace path the way components carry it
func JoinNamespace(namespace []string) (joined string) {
	joined = strings.Join(namespace, "/")
	return
}

// Collector for one multiplexer's counters
type MultiplexerCollector struct {
	multiplexer *mux.Multiplexer

	polls         *prometheus.Desc
	fragments     *prometheus.Desc
	bytes         *prometheus.Desc
	sources       *prometheus.Desc
	sourceChanges *prometheus.Desc
}

var _ prometheus.Collector = (*MultiplexerCollector)(nil)

// MultiplexerCollector constructor
func NewMultiplexerCollector(multiplexer *mux.Multiplexer) (new *MultiplexerCollector) {
	labels := prometheus.Labels{
		"channel": multiplexer.Channel(),
	}

	new = &MultiplexerCollector{
		multiplexer: multiplexer,
		polls: prometheus.NewDesc("streammux_polls_total",
			"Poll-family calls made against the multiplexer", nil, labels),
		fragments: prometheus.NewDesc("streammux_fragments_read_total",
			"Fragments delivered across all sources", nil, labels),
		bytes: prometheus.NewDesc("streammux_bytes_consumed_total",
			"Bytes delivered by block and raw polls", nil, labels),
		sources: prometheus.NewDesc("streammux_sources",
			"Sources currently attached", nil, labels),
		sourceChanges: prometheus.NewDesc("streammux_source_changes_total",
			"Source attach and detach operations", []string{"change"}, labels),
	}
	return
}

func (collector *MultiplexerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.polls
	ch <- collector.fragments
	ch <- collector.bytes
	ch <- collector.sources
	ch <- collector.sourceChanges
}

func (collector *MultiplexerCollector) Collect(ch chan<- prometheus.Metric) {
	storage := collector.multiplexer.Metrics

	ch <- prometheus.MustNewConstMetric(collector.polls,
		prometheus.CounterValue, float64(storage.Polls.Load()))
	ch <- prometheus.MustNewConstMetric(collector.fragments,
		prometheus.CounterValue, float64(storage.FragmentsRead.Load()))
	ch <- prometheus.MustNewConstMetric(collector.bytes,
		prometheus.CounterValue, float64(storage.BytesConsumed.Load()))
	ch <- prometheus.MustNewConstMetric(collector.sources,
		prometheus.GaugeValue, float64(collector.multiplexer.SourceCount()))
	ch <- prometheus.MustNewConstMetric(collector.sourceChanges,
		prometheus.CounterValue, float64(storage.SourcesAdded.Load()), "add")
	ch <- prometheus.MustNewConstMetric(collector.sourceChanges,
		prometheus.CounterValue, float64(storage.SourcesRemoved.Load()), "remove")
}

// Collector for one fragment ring's counters
type RingCollector struct {
	storage   *ringbuf.MetricStorage
	namespace string

	offers *prometheus.Desc
	full   *prometheus.Desc
	polls  *prometheus.Desc
	depth  *prometheus.Desc
	bytes  *prometheus.Desc
}

var _ prometheus.Collector = (*RingCollector)(nil)

// RingCollector constructor
func NewRingCollector(namespace []string, storage *ringbuf.MetricStorage) (new *RingCollector) {
	labels := prometheus.Labels{"namespace": JoinNamespace(namespace)}

	new = &RingCollector{
		storage:   storage,
		namespace: JoinNamespace(namespace),
		offers: prometheus.NewDesc("streammux_ring_offers_total",
			"Fragments written into the ring", nil, labels),
		full: prometheus.NewDesc("streammux_ring_full_total",
			"Writes rejected because the ring was full", nil, labels),
		polls: prometheus.NewDesc("streammux_ring_polls_total",
			"Fragments read out of the ring", nil, labels),
		depth: prometheus.NewDesc("streammux_ring_depth",
			"Fragments currently buffered", nil, labels),
		bytes: prometheus.NewDesc("streammux_ring_buffered_bytes",
			"Payload bytes currently buffered", nil, labels),
	}
	return
}

func (collector *RingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.offers
	ch <- collector.full
	ch <- collector.polls
	ch <- collector.depth
	ch <- collector.bytes
}

func (collector *RingCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collector.offers,
		prometheus.CounterValue, float64(collector.storage.Offers.Load()))
	ch <- prometheus.MustNewConstMetric(collector.full,
		prometheus.CounterValue, float64(collector.storage.OfferFull.Load()))
	ch <- prometheus.MustNewConstMetric(collector.polls,
		prometheus.CounterValue, float64(collector.storage.Polls.Load()))
	ch <- prometheus.MustNewConstMetric(collector.depth,
		prometheus.GaugeValue, float64(collector.storage.Depth.Load()))
	ch <- prometheus.MustNewConstMetric(collector.bytes,
		prometheus.GaugeValue, float64(collector.storage.Bytes.Load()))
}

// Collector for the conductor's control-plane counters
type ConductorCollector struct {
	conductor *conductor.Conductor

	subscriptions *prometheus.Desc
	unavailable   *prometheus.Desc
	deferred      *prometheus.Desc
	reclaimed     *prometheus.Desc
	lingering     *prometheus.Desc
}

var _ prometheus.Collector = (*ConductorCollector)(nil)

// ConductorCollector constructor
func NewConductorCollector(conductor *conductor.Conductor) (new *ConductorCollector) {
	labels := prometheus.Labels{"client": conductor.ClientID()}

	new = &ConductorCollector{
		conductor: conductor,
		subscriptions: prometheus.NewDesc("streammux_subscriptions_total",
			"Multiplexers registered", nil, labels),
		unavailable: prometheus.NewDesc("streammux_sources_unavailable_total",
			"Source unavailability notifications delivered", nil, labels),
		deferred: prometheus.NewDesc("streammux_resources_deferred_total",
			"Resources handed to deferred reclamation", nil, labels),
		reclaimed: prometheus.NewDesc("streammux_resources_reclaimed_total",
			"Resources disposed after lingering", nil, labels),
		lingering: prometheus.NewDesc("streammux_resources_lingering",
			"Resources currently awaiting disposal", nil, labels),
	}
	return
}

func (collector *ConductorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.subscriptions
	ch <- collector.unavailable
	ch <- collector.deferred
	ch <- collector.reclaimed
	ch <- collector.lingering
}

func (collector *ConductorCollector) Collect(ch chan<- prometheus.Metric) {
	storage := collector.conductor.Metrics

	ch <- prometheus.MustNewConstMetric(collector.subscriptions,
		prometheus.CounterValue, float64(storage.Subscriptions.Load()))
	ch <- prometheus.MustNewConstMetric(collector.unavailable,
		prometheus.CounterValue, float64(storage.Unavailable.Load()))
	ch <- prometheus.MustNewConstMetric(collector.deferred,
		prometheus.CounterValue, float64(storage.Deferred.Load()))
	ch <- prometheus.MustNewConstMetric(collector.reclaimed,
		prometheus.CounterValue, float64(storage.Reclaimed.Load()))
	ch <- prometheus.MustNewConstMetric(collector.lingering,
		prometheus.GaugeValue, float64(storage.LingerDepth.Load()))
}
