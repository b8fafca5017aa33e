package monitoring

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/irctrakz/streammon/pkg/core"
)

// StreamMetrics is the leaf aggregator for one live stream.
//
// A stream with an origin is a relay: its traffic is already counted at the
// origin, so its mutations stay local and are never forwarded upward.
type StreamMetrics struct {
	CommonMetrics

	id        uint32
	name      string
	provider  core.ProviderType
	origin    uint32
	hasOrigin bool

	app *ApplicationMetrics
}

func newStreamMetrics(app *ApplicationMetrics, stream core.StreamDescriptor) (*StreamMetrics, error) {
	origin, hasOrigin := stream.Origin()
	if hasOrigin && origin == stream.ID {
		return nil, fmt.Errorf("stream %d (%s) names itself as origin: %w", stream.ID, stream.Name, ErrAllocation)
	}

	s := &StreamMetrics{
		id:        stream.ID,
		name:      stream.Name,
		provider:  stream.Provider,
		origin:    origin,
		hasOrigin: hasOrigin,
		app:       app,
	}
	s.init(app.clock)
	return s, nil
}

// ID returns the stream id.
func (s *StreamMetrics) ID() uint32 { return s.id }

// Name returns the stream name.
func (s *StreamMetrics) Name() string { return s.name }

// Provider returns the ingest protocol of the stream.
func (s *StreamMetrics) Provider() core.ProviderType { return s.provider }

// Application returns the owning application.
func (s *StreamMetrics) Application() *ApplicationMetrics { return s.app }

// GetOriginStream returns the id of the stream this one relays, if any.
// Resolve it with ApplicationMetrics.ResolveOriginStream.
func (s *StreamMetrics) GetOriginStream() (uint32, bool) {
	return s.origin, s.hasOrigin
}

// IsOrigin reports whether this stream is the originating source of its traffic.
func (s *StreamMetrics) IsOrigin() bool { return !s.hasOrigin }

// IncreaseBytesIn adds n ingested bytes.
func (s *StreamMetrics) IncreaseBytesIn(n uint64) {
	if !s.hasOrigin {
		s.app.IncreaseBytesIn(n)
	}
	s.CommonMetrics.IncreaseBytesIn(n)
}

// IncreaseBytesOut adds n bytes sent through publisher type t.
func (s *StreamMetrics) IncreaseBytesOut(t core.PublisherType, n uint64) {
	if !s.hasOrigin {
		s.app.IncreaseBytesOut(t, n)
	}
	s.CommonMetrics.IncreaseBytesOut(t, n)
}

// OnSessionConnected counts one new session of type t.
func (s *StreamMetrics) OnSessionConnected(t core.PublisherType) {
	if !s.hasOrigin {
		s.app.OnSessionConnected(t)
	}
	s.CommonMetrics.OnSessionConnected(t)
}

// OnSessionDisconnected counts one closed session of type t.
func (s *StreamMetrics) OnSessionDisconnected(t core.PublisherType) {
	if !s.hasOrigin {
		s.app.OnSessionDisconnected(t)
	}
	s.CommonMetrics.OnSessionDisconnected(t)
}

// GetInfo returns the stream's info record.
func (s *StreamMetrics) GetInfo() Info {
	info := Info{
		Kind:        KindStream,
		ID:          strconv.FormatUint(uint64(s.id), 10),
		Name:        s.name,
		CreatedTime: s.CreatedTime(),
		Counters:    s.Snapshot(),
	}
	if s.hasOrigin {
		o := s.origin
		info.OriginID = &o
	}
	return info
}

// ShowInfo logs the stream's info record.
func (s *StreamMetrics) ShowInfo() {
	s.GetInfo().log()
}

// ReservedStreamMetrics records a stream announced by a provider before it goes live.
type ReservedStreamMetrics struct {
	provider     core.ProviderType
	uri          string
	streamName   string
	port         uint32
	reservedTime time.Time
}

func newReservedStreamMetrics(provider core.ProviderType, uri *url.URL, streamName string, at time.Time) *ReservedStreamMetrics {
	r := &ReservedStreamMetrics{
		provider:     provider,
		streamName:   streamName,
		reservedTime: at,
	}
	if uri != nil {
		r.uri = uri.String()
		r.port = reservationPort(uri)
	}
	return r
}

// reservationPort returns the explicit port of uri, or 0 when it has none.
func reservationPort(uri *url.URL) uint32 {
	p := uri.Port()
	if p == "" {
		return 0
	}
	v, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// Provider returns who made the reservation.
func (r *ReservedStreamMetrics) Provider() core.ProviderType { return r.provider }

// URI returns the reserved stream URI.
func (r *ReservedStreamMetrics) URI() string { return r.uri }

// StreamName returns the name the stream will have once live.
func (r *ReservedStreamMetrics) StreamName() string { return r.streamName }

// Port returns the port the reservation is keyed by.
func (r *ReservedStreamMetrics) Port() uint32 { return r.port }

// ReservedTime returns when the reservation was made.
func (r *ReservedStreamMetrics) ReservedTime() time.Time { return r.reservedTime }

// ReservationInfo is the report form of a ReservedStreamMetrics.
type ReservationInfo struct {
	Provider     string    `json:"provider"`
	URI          string    `json:"uri"`
	StreamName   string    `json:"stream_name"`
	Port         uint32    `json:"port"`
	ReservedTime time.Time `json:"reserved_time"`
}

// GetInfo returns the reservation's info record.
func (r *ReservedStreamMetrics) GetInfo() ReservationInfo {
	return ReservationInfo{
		Provider:     r.provider.String(),
		URI:          r.uri,
		StreamName:   r.streamName,
		Port:         r.port,
		ReservedTime: r.reservedTime,
	}
}
