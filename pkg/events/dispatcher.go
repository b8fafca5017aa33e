package events

import (
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/monitoring"
)

// DispatchStats counts dispatched events.
type DispatchStats struct {
	Applied uint64
	Failed  uint64
}

// Dispatcher applies events to a host tree. It is safe for concurrent use.
type Dispatcher struct {
	host *monitoring.HostMetrics

	applied atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher creates a dispatcher for host.
func NewDispatcher(host *monitoring.HostMetrics) *Dispatcher {
	return &Dispatcher{host: host}
}

// Host returns the tree the dispatcher applies events to.
func (d *Dispatcher) Host() *monitoring.HostMetrics { return d.host }

// Stats returns the applied and failed event counts.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{Applied: d.applied.Load(), Failed: d.failed.Load()}
}

// Dispatch validates ev and applies it.
func (d *Dispatcher) Dispatch(ev Event) error {
	err := ev.Validate()
	if err == nil {
		err = d.apply(ev)
	}
	if err != nil {
		d.failed.Add(1)
		return err
	}
	d.applied.Add(1)
	return nil
}

func (d *Dispatcher) apply(ev Event) error {
	appDesc := core.ApplicationDescriptor{ID: ev.App, Name: ev.AppName}
	switch ev.Type {
	case TypeAppCreated:
		return d.host.OnApplicationCreated(appDesc)
	case TypeAppDeleted:
		return d.host.OnApplicationDeleted(appDesc)
	}

	app := d.host.GetApplicationMetrics(ev.App)
	if app == nil {
		return fmt.Errorf("application %d: %w", ev.App, monitoring.ErrNotFound)
	}

	switch ev.Type {
	case TypeStreamCreated:
		return app.OnStreamCreated(*ev.Stream)
	case TypeStreamDeleted:
		return app.OnStreamDeleted(*ev.Stream)
	case TypeStreamReserved:
		u, err := url.Parse(ev.URI)
		if err != nil {
			return fmt.Errorf("%w: uri %q: %v", ErrInvalidEvent, ev.URI, err)
		}
		return app.OnStreamReserved(ev.Provider, u, ev.Name)
	case TypeReservationReleased:
		return app.OnReservedStreamReleased(ev.Port)
	}

	target, err := d.counterTarget(app, ev)
	if err != nil {
		return err
	}
	switch ev.Type {
	case TypeBytesIn:
		target.IncreaseBytesIn(ev.Bytes)
	case TypeBytesOut:
		target.IncreaseBytesOut(ev.Publisher, ev.Bytes)
	case TypeSessionConnected:
		target.OnSessionConnected(ev.Publisher)
	case TypeSessionDisconnected:
		target.OnSessionDisconnected(ev.Publisher)
	}
	return nil
}

// counterSink is the mutation surface shared by applications and streams.
type counterSink interface {
	IncreaseBytesIn(n uint64)
	IncreaseBytesOut(t core.PublisherType, n uint64)
	OnSessionConnected(t core.PublisherType)
	OnSessionDisconnected(t core.PublisherType)
}

func (d *Dispatcher) counterTarget(app *monitoring.ApplicationMetrics, ev Event) (counterSink, error) {
	if ev.Stream == nil {
		return app, nil
	}
	sm := app.GetStreamMetrics(ev.Stream.ID)
	if sm == nil {
		return nil, fmt.Errorf("stream %d in application %d: %w", ev.Stream.ID, ev.App, monitoring.ErrNotFound)
	}
	return sm, nil
}
