package main

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/events"
	"github.com/irctrakz/streammon/pkg/logging"
	"github.com/irctrakz/streammon/pkg/monitoring"
)

// infoPublisher receives the host record on every report.
type infoPublisher interface {
	PublishInfo(info monitoring.Info) error
}

type metricsSnapshot struct {
	Timestamp string               `json:"ts"`
	Host      monitoring.Info      `json:"host"`
	Events    events.DispatchStats `json:"events"`
	RT        map[string]uint64    `json:"rt"`
}

type metricsReporter struct {
	dispatcher   *events.Dispatcher
	format       string
	showChildren bool
	publisher    infoPublisher
	clock        clock.Clock
}

func newMetricsReporter(d *events.Dispatcher, cfg core.ReporterConfig, pub infoPublisher, clk clock.Clock) *metricsReporter {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = "text"
	}
	return &metricsReporter{
		dispatcher:   d,
		format:       format,
		showChildren: cfg.ShowChildren,
		publisher:    pub,
		clock:        clk,
	}
}

// run reports once immediately and then on every tick until ctx is done.
func (r *metricsReporter) run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		r.dump()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *metricsReporter) snapshot() metricsSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return metricsSnapshot{
		Timestamp: r.clock.Now().UTC().Format(time.RFC3339),
		Host:      r.dispatcher.Host().GetInfo(r.showChildren),
		Events:    r.dispatcher.Stats(),
		RT: map[string]uint64{
			"heap_alloc": ms.HeapAlloc,
			"heap_inuse": ms.HeapInuse,
			"sys":        ms.Sys,
			"num_gc":     uint64(ms.NumGC),
			"goroutines": uint64(runtime.NumGoroutine()),
		},
	}
}

func (r *metricsReporter) dump() {
	snap := r.snapshot()

	switch r.format {
	case "json":
		b, err := json.Marshal(snap)
		if err != nil {
			logging.Warnf("metrics: marshal failed: %v", err)
			break
		}
		logging.Infof("metrics: %s", string(b))
	default:
		h := snap.Host.Counters
		logging.Infof("metrics: ts=%s host=%s apps=%d | conns=%d peak=%d | bytes: in=%d out=%d | events: ok=%d fail=%d | rt: heap=%dMi gor=%d gc=%d",
			snap.Timestamp, snap.Host.ID, len(r.dispatcher.Host().GetApplicationMetricsMap()),
			h.TotalConnections, h.MaxTotalConnections,
			h.BytesIn, h.TotalBytesOut,
			snap.Events.Applied, snap.Events.Failed,
			snap.RT["heap_alloc"]/(1024*1024), snap.RT["goroutines"], snap.RT["num_gc"],
		)
		for _, app := range snap.Host.Children {
			app.Walk(func(n monitoring.Info) {
				logging.Infof("metrics: %s=%s(%s) conns=%d in=%d out=%d%s",
					n.Kind, n.Name, n.ID,
					n.Counters.TotalConnections, n.Counters.BytesIn, n.Counters.TotalBytesOut,
					publisherBreakdown(n.Counters.Connections))
			})
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishInfo(snap.Host); err != nil {
			logging.Warnf("metrics: publish failed: %v", err)
		}
	}
}

// publisherBreakdown renders nonzero per-publisher session counts in a stable order.
func publisherBreakdown(conns map[string]int64) string {
	var b strings.Builder
	for _, t := range core.PublisherTypes() {
		if v, ok := conns[t.String()]; ok {
			b.WriteString(" ")
			b.WriteString(t.String())
			b.WriteString("=")
			b.WriteString(strconv.FormatInt(v, 10))
		}
	}
	return b.String()
}
