// Package exporter exposes a monitoring tree as Prometheus metrics.
package exporter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/events"
	"github.com/irctrakz/streammon/pkg/monitoring"
)

// Levels used in the "level" label.
const (
	LevelHost        = "host"
	LevelApplication = "application"
	LevelStream      = "stream"
)

// Collector reads the tree on every scrape. It holds no state of its own,
// so series of deleted streams disappear on the next scrape.
type Collector struct {
	host       *monitoring.HostMetrics
	dispatcher *events.Dispatcher
	perStream  bool

	bytesIn     *prometheus.Desc
	bytesOut    *prometheus.Desc
	connections *prometheus.Desc
	maxConns    *prometheus.Desc
	streams     *prometheus.Desc
	reserved    *prometheus.Desc
	eventsDesc  *prometheus.Desc
}

// NewCollector builds a collector for host. dispatcher may be nil.
func NewCollector(namespace string, host *monitoring.HostMetrics, dispatcher *events.Dispatcher, perStream bool) *Collector {
	nodeLabels := []string{"level", "app_id", "app", "stream_id", "stream"}
	pubLabels := append(append([]string{}, nodeLabels...), "publisher")
	return &Collector{
		host:       host,
		dispatcher: dispatcher,
		perStream:  perStream,
		bytesIn: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_in_total"),
			"Bytes ingested.", nodeLabels, nil),
		bytesOut: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_out_total"),
			"Bytes sent, by publisher type.", pubLabels, nil),
		connections: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "connections"),
			"Open sessions, by publisher type.", pubLabels, nil),
		maxConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "max_total_connections"),
			"Peak total open sessions.", nodeLabels, nil),
		streams: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "streams"),
			"Live streams per application.", []string{"app_id", "app"}, nil),
		reserved: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "reserved_streams"),
			"Reserved streams per application.", []string{"app_id", "app"}, nil),
		eventsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_total"),
			"Engine events dispatched, by result.", []string{"result"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytesIn
	ch <- c.bytesOut
	ch <- c.connections
	ch <- c.maxConns
	ch <- c.streams
	ch <- c.reserved
	ch <- c.eventsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.collectNode(ch, &c.host.CommonMetrics, LevelHost, node{})

	for _, app := range c.host.GetApplicationMetricsMap() {
		appID := strconv.FormatUint(uint64(app.ID()), 10)
		c.collectNode(ch, &app.CommonMetrics, LevelApplication, node{appID: appID, app: app.Name()})

		streams := app.GetStreamMetricsMap()
		ch <- prometheus.MustNewConstMetric(c.streams, prometheus.GaugeValue, float64(len(streams)), appID, app.Name())
		ch <- prometheus.MustNewConstMetric(c.reserved, prometheus.GaugeValue,
			float64(len(app.GetReservedStreamMetricsMap())), appID, app.Name())

		if !c.perStream {
			continue
		}
		for _, sm := range streams {
			c.collectNode(ch, &sm.CommonMetrics, LevelStream, node{
				appID:    appID,
				app:      app.Name(),
				streamID: strconv.FormatUint(uint64(sm.ID()), 10),
				stream:   sm.Name(),
			})
		}
	}

	if c.dispatcher != nil {
		st := c.dispatcher.Stats()
		ch <- prometheus.MustNewConstMetric(c.eventsDesc, prometheus.CounterValue, float64(st.Applied), "applied")
		ch <- prometheus.MustNewConstMetric(c.eventsDesc, prometheus.CounterValue, float64(st.Failed), "failed")
	}
}

// node holds the identifying label values of one tree node.
type node struct {
	appID, app, streamID, stream string
}

func (c *Collector) collectNode(ch chan<- prometheus.Metric, m *monitoring.CommonMetrics, level string, n node) {
	labels := []string{level, n.appID, n.app, n.streamID, n.stream}
	ch <- prometheus.MustNewConstMetric(c.bytesIn, prometheus.CounterValue, float64(m.GetBytesIn()), labels...)
	peak, _ := m.GetMaxTotalConnections()
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(peak), labels...)
	for _, t := range core.PublisherTypes() {
		pl := append(labels[:len(labels):len(labels)], t.String())
		ch <- prometheus.MustNewConstMetric(c.bytesOut, prometheus.CounterValue, float64(m.GetBytesOut(t)), pl...)
		ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(m.GetConnections(t)), pl...)
	}
}
