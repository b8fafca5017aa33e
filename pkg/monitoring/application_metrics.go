package monitoring

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/logging"
)

// ApplicationMetrics aggregates every stream of one application and
// forwards each mutation to the host.
//
// The stream map and the reservation map are guarded by independent
// readers-writer locks. Counter mutations never take either lock.
type ApplicationMetrics struct {
	CommonMetrics

	id   uint32
	name string
	host *HostMetrics

	streamsMu sync.RWMutex
	streams   map[uint32]*StreamMetrics

	reservedMu sync.RWMutex
	reserved   map[uint32]*ReservedStreamMetrics
}

// NewApplicationMetrics creates an application aggregator bound to host.
// Most callers go through HostMetrics.OnApplicationCreated instead.
func NewApplicationMetrics(host *HostMetrics, app core.ApplicationDescriptor) *ApplicationMetrics {
	a := &ApplicationMetrics{
		id:       app.ID,
		name:     app.Name,
		host:     host,
		streams:  make(map[uint32]*StreamMetrics),
		reserved: make(map[uint32]*ReservedStreamMetrics),
	}
	a.init(host.clock)
	return a
}

// ID returns the application id.
func (a *ApplicationMetrics) ID() uint32 { return a.id }

// Name returns the application name.
func (a *ApplicationMetrics) Name() string { return a.name }

// Host returns the host this application forwards to.
func (a *ApplicationMetrics) Host() *HostMetrics { return a.host }

func (a *ApplicationMetrics) fields(stream core.StreamDescriptor) logging.Fields {
	return logging.Fields{
		"app":       a.name,
		"app_id":    a.id,
		"stream":    stream.Name,
		"stream_id": stream.ID,
	}
}

// OnStreamCreated registers a stream. Creating an id that already exists
// is a successful no-op.
func (a *ApplicationMetrics) OnStreamCreated(stream core.StreamDescriptor) error {
	a.streamsMu.Lock()
	if _, ok := a.streams[stream.ID]; ok {
		a.streamsMu.Unlock()
		return nil
	}

	if limit := a.host.cfg.MaxStreamsPerApplication; limit > 0 && len(a.streams) >= limit {
		a.streamsMu.Unlock()
		err := fmt.Errorf("application %s reached %d streams: %w", a.name, limit, ErrAllocation)
		log.WithFields(a.fields(stream)).WithError(err).Error("Cannot create StreamMetrics")
		return err
	}

	sm, err := newStreamMetrics(a, stream)
	if err != nil {
		a.streamsMu.Unlock()
		log.WithFields(a.fields(stream)).WithError(err).Error("Cannot create StreamMetrics")
		return err
	}
	a.streams[stream.ID] = sm
	a.streamsMu.Unlock()

	log.WithFields(a.fields(stream)).Info("Create StreamMetrics for monitoring")
	return nil
}

// OnStreamDeleted removes a stream. If the stream is an origin, the
// sessions it still holds are subtracted from this application and from
// the host; a relay contributed nothing upward and subtracts nothing.
//
// The entry is erased before the correction is applied, so concurrent
// deletions of the same stream subtract exactly once; the loser gets
// ErrNotFound.
func (a *ApplicationMetrics) OnStreamDeleted(stream core.StreamDescriptor) error {
	if a.GetStreamMetrics(stream.ID) == nil {
		return fmt.Errorf("stream %d in application %s: %w", stream.ID, a.name, ErrNotFound)
	}

	a.streamsMu.Lock()
	sm, ok := a.streams[stream.ID]
	if ok {
		delete(a.streams, stream.ID)
	}
	a.streamsMu.Unlock()
	if !ok {
		return fmt.Errorf("stream %d in application %s: %w", stream.ID, a.name, ErrNotFound)
	}

	if sm.IsOrigin() {
		for _, t := range core.PublisherTypes() {
			n := sm.GetConnections(t)
			a.host.OnSessionsDisconnected(t, n)
			a.CommonMetrics.OnSessionsDisconnected(t, n)
		}
	}

	log.WithFields(a.fields(stream)).Info("Delete StreamMetrics for monitoring")
	if a.host.cfg.LogStreamInfoOnDelete {
		sm.ShowInfo()
	}
	return nil
}

// GetStreamMetrics returns the stream with the given id, or nil.
func (a *ApplicationMetrics) GetStreamMetrics(id uint32) *StreamMetrics {
	a.streamsMu.RLock()
	defer a.streamsMu.RUnlock()
	return a.streams[id]
}

// GetStreamMetricsMap returns a copy of the stream map. Membership is
// frozen at the time of the call, but the entries are the live
// aggregators and keep counting.
func (a *ApplicationMetrics) GetStreamMetricsMap() map[uint32]*StreamMetrics {
	a.streamsMu.RLock()
	defer a.streamsMu.RUnlock()
	out := make(map[uint32]*StreamMetrics, len(a.streams))
	for id, sm := range a.streams {
		out[id] = sm
	}
	return out
}

// StreamCount returns the number of live streams.
func (a *ApplicationMetrics) StreamCount() int {
	a.streamsMu.RLock()
	defer a.streamsMu.RUnlock()
	return len(a.streams)
}

// ResolveOriginStream looks up the origin of sm in this application. It
// returns nil for an originating stream or when the origin is gone.
func (a *ApplicationMetrics) ResolveOriginStream(sm *StreamMetrics) *StreamMetrics {
	origin, ok := sm.GetOriginStream()
	if !ok {
		return nil
	}
	return a.GetStreamMetrics(origin)
}

// OnStreamReserved records a stream announced by provider. The reservation
// is keyed by the port of uri and replaces any earlier one on that port.
func (a *ApplicationMetrics) OnStreamReserved(provider core.ProviderType, uri *url.URL, streamName string) error {
	r := newReservedStreamMetrics(provider, uri, streamName, a.clock.Now().UTC())

	a.reservedMu.Lock()
	a.reserved[r.port] = r
	a.reservedMu.Unlock()

	log.WithFields(logging.Fields{
		"app":      a.name,
		"provider": provider.String(),
		"stream":   streamName,
		"uri":      r.uri,
	}).Info("Stream reserved")
	return nil
}

// OnReservedStreamReleased drops the reservation on port.
func (a *ApplicationMetrics) OnReservedStreamReleased(port uint32) error {
	a.reservedMu.Lock()
	_, ok := a.reserved[port]
	delete(a.reserved, port)
	a.reservedMu.Unlock()
	if !ok {
		return fmt.Errorf("reservation on port %d in application %s: %w", port, a.name, ErrNotFound)
	}
	return nil
}

// GetReservedStreamMetrics returns the reservation on port, or nil.
func (a *ApplicationMetrics) GetReservedStreamMetrics(port uint32) *ReservedStreamMetrics {
	a.reservedMu.RLock()
	defer a.reservedMu.RUnlock()
	return a.reserved[port]
}

// GetReservedStreamMetricsMap returns a copy of the reservation map, by port.
func (a *ApplicationMetrics) GetReservedStreamMetricsMap() map[uint32]*ReservedStreamMetrics {
	a.reservedMu.RLock()
	defer a.reservedMu.RUnlock()
	out := make(map[uint32]*ReservedStreamMetrics, len(a.reserved))
	for port, r := range a.reserved {
		out[port] = r
	}
	return out
}

// IncreaseBytesIn forwards n ingested bytes to the host, then counts them here.
func (a *ApplicationMetrics) IncreaseBytesIn(n uint64) {
	a.host.IncreaseBytesIn(n)
	a.CommonMetrics.IncreaseBytesIn(n)
}

// IncreaseBytesOut forwards n sent bytes to the host, then counts them here.
func (a *ApplicationMetrics) IncreaseBytesOut(t core.PublisherType, n uint64) {
	a.host.IncreaseBytesOut(t, n)
	a.CommonMetrics.IncreaseBytesOut(t, n)
}

// OnSessionConnected forwards a new session to the host, then counts it here.
func (a *ApplicationMetrics) OnSessionConnected(t core.PublisherType) {
	a.host.OnSessionConnected(t)
	a.CommonMetrics.OnSessionConnected(t)
}

// OnSessionDisconnected forwards a closed session to the host, then counts it here.
func (a *ApplicationMetrics) OnSessionDisconnected(t core.PublisherType) {
	a.host.OnSessionDisconnected(t)
	a.CommonMetrics.OnSessionDisconnected(t)
}

// GetInfo returns the application's info record, with its streams when
// showChildren is set.
func (a *ApplicationMetrics) GetInfo(showChildren bool) Info {
	info := Info{
		Kind:        KindApplication,
		ID:          strconv.FormatUint(uint64(a.id), 10),
		Name:        a.name,
		CreatedTime: a.CreatedTime(),
		Counters:    a.Snapshot(),
	}
	if !showChildren {
		return info
	}

	streams := a.GetStreamMetricsMap()
	ids := make([]uint32, 0, len(streams))
	for id := range streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		info.Children = append(info.Children, streams[id].GetInfo())
	}
	return info
}

// ShowInfo logs the application's info record.
func (a *ApplicationMetrics) ShowInfo(showChildren bool) {
	a.GetInfo(showChildren).log()
}
