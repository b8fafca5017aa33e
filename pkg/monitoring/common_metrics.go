package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/irctrakz/streammon/pkg/core"
)

// CommonMetrics is the counter set carried by every node of the tree.
// All mutations are individually atomic; none of them take a lock.
//
// A CommonMetrics must not be copied after first use.
type CommonMetrics struct {
	clock       clock.Clock
	createdTime time.Time

	bytesIn     atomic.Uint64
	bytesOut    [core.NumberOfPublishers]atomic.Uint64
	connections [core.NumberOfPublishers]atomic.Int64

	maxTotalConnections     atomic.Int64
	maxTotalConnectionsTime atomic.Int64 // unix nanos

	lastUpdatedTime atomic.Int64
	lastRecvTime    atomic.Int64
	lastSentTime    atomic.Int64
}

func (m *CommonMetrics) init(clk clock.Clock) {
	if clk == nil {
		clk = clock.New()
	}
	m.clock = clk
	m.createdTime = clk.Now().UTC()
	m.lastUpdatedTime.Store(m.createdTime.UnixNano())
}

func (m *CommonMetrics) now() int64 {
	return m.clock.Now().UnixNano()
}

// IncreaseBytesIn adds n ingested bytes.
func (m *CommonMetrics) IncreaseBytesIn(n uint64) {
	m.bytesIn.Add(n)
	ts := m.now()
	m.lastRecvTime.Store(ts)
	m.lastUpdatedTime.Store(ts)
}

// IncreaseBytesOut adds n bytes sent through publisher type t.
func (m *CommonMetrics) IncreaseBytesOut(t core.PublisherType, n uint64) {
	if !t.Valid() {
		return
	}
	m.bytesOut[t].Add(n)
	ts := m.now()
	m.lastSentTime.Store(ts)
	m.lastUpdatedTime.Store(ts)
}

// OnSessionConnected counts one new session of type t.
func (m *CommonMetrics) OnSessionConnected(t core.PublisherType) {
	if !t.Valid() {
		return
	}
	m.connections[t].Add(1)
	m.updateMaxConnections()
	m.lastUpdatedTime.Store(m.now())
}

// OnSessionDisconnected counts one closed session of type t.
func (m *CommonMetrics) OnSessionDisconnected(t core.PublisherType) {
	m.OnSessionsDisconnected(t, 1)
}

// OnSessionsDisconnected subtracts n sessions of type t at once. It is the
// correction path used when a stream disappears with sessions still open;
// n of zero is a no-op.
func (m *CommonMetrics) OnSessionsDisconnected(t core.PublisherType, n int64) {
	if !t.Valid() || n == 0 {
		return
	}
	m.connections[t].Add(-n)
	m.lastUpdatedTime.Store(m.now())
}

func (m *CommonMetrics) updateMaxConnections() {
	total := m.GetTotalConnections()
	for {
		cur := m.maxTotalConnections.Load()
		if total <= cur {
			return
		}
		if m.maxTotalConnections.CompareAndSwap(cur, total) {
			m.maxTotalConnectionsTime.Store(m.now())
			return
		}
	}
}

// CreatedTime returns when the node was created.
func (m *CommonMetrics) CreatedTime() time.Time { return m.createdTime }

// GetBytesIn returns the total ingested bytes.
func (m *CommonMetrics) GetBytesIn() uint64 { return m.bytesIn.Load() }

// GetBytesOut returns bytes sent through publisher type t.
func (m *CommonMetrics) GetBytesOut(t core.PublisherType) uint64 {
	if !t.Valid() {
		return 0
	}
	return m.bytesOut[t].Load()
}

// GetTotalBytesOut returns bytes sent through every publisher type.
func (m *CommonMetrics) GetTotalBytesOut() uint64 {
	var total uint64
	for i := range m.bytesOut {
		total += m.bytesOut[i].Load()
	}
	return total
}

// GetConnections returns open sessions of publisher type t.
func (m *CommonMetrics) GetConnections(t core.PublisherType) int64 {
	if !t.Valid() {
		return 0
	}
	return m.connections[t].Load()
}

// GetTotalConnections returns open sessions of every publisher type.
func (m *CommonMetrics) GetTotalConnections() int64 {
	var total int64
	for i := range m.connections {
		total += m.connections[i].Load()
	}
	return total
}

// GetMaxTotalConnections returns the peak total connection count and when it was reached.
func (m *CommonMetrics) GetMaxTotalConnections() (int64, time.Time) {
	return m.maxTotalConnections.Load(), unixNanoTime(m.maxTotalConnectionsTime.Load())
}

// CounterSnapshot is a point-in-time copy of a CommonMetrics. Publisher
// types absent from BytesOut or Connections have a zero value.
type CounterSnapshot struct {
	CreatedTime             time.Time         `json:"created_time"`
	LastUpdatedTime         time.Time         `json:"last_updated_time"`
	LastRecvTime            time.Time         `json:"last_recv_time"`
	LastSentTime            time.Time         `json:"last_sent_time"`
	BytesIn                 uint64            `json:"bytes_in"`
	BytesOut                map[string]uint64 `json:"bytes_out,omitempty"`
	TotalBytesOut           uint64            `json:"total_bytes_out"`
	Connections             map[string]int64  `json:"connections,omitempty"`
	TotalConnections        int64             `json:"total_connections"`
	MaxTotalConnections     int64             `json:"max_total_connections"`
	MaxTotalConnectionsTime time.Time         `json:"max_total_connections_time"`
}

// Snapshot reads every counter. Counters are read one by one, so a
// snapshot taken under concurrent mutation is not a single atomic cut.
func (m *CommonMetrics) Snapshot() CounterSnapshot {
	s := CounterSnapshot{
		CreatedTime:     m.createdTime,
		LastUpdatedTime: unixNanoTime(m.lastUpdatedTime.Load()),
		LastRecvTime:    unixNanoTime(m.lastRecvTime.Load()),
		LastSentTime:    unixNanoTime(m.lastSentTime.Load()),
		BytesIn:         m.bytesIn.Load(),
		BytesOut:        make(map[string]uint64),
		Connections:     make(map[string]int64),
	}
	for _, t := range core.PublisherTypes() {
		if v := m.bytesOut[t].Load(); v != 0 {
			s.BytesOut[t.String()] = v
			s.TotalBytesOut += v
		}
		if v := m.connections[t].Load(); v != 0 {
			s.Connections[t.String()] = v
			s.TotalConnections += v
		}
	}
	s.MaxTotalConnections, s.MaxTotalConnectionsTime = m.GetMaxTotalConnections()
	return s
}

func unixNanoTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
