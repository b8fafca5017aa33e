// Package monitoring implements the host -> application -> stream metrics tree.
//
// Every counter mutation applied at a node is also applied to each of its
// ancestors at the time it happens, so parent totals never require a scan
// of the children. Removing a node subtracts the sessions it still holds
// from its ancestors exactly once.
package monitoring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/logging"
)

var log = logging.ForComponent("monitoring")

// Config contains settings shared by every node of a tree.
type Config struct {
	// MaxStreamsPerApplication caps live streams per application (0 = unlimited).
	MaxStreamsPerApplication int

	// LogStreamInfoOnDelete logs the final info record of each deleted stream.
	LogStreamInfoOnDelete bool

	// Clock provides timestamps. Defaults to the wall clock.
	Clock clock.Clock
}

// DefaultConfig returns the default tree configuration.
func DefaultConfig() Config {
	return Config{
		MaxStreamsPerApplication: 0,
		LogStreamInfoOnDelete:    true,
		Clock:                    clock.New(),
	}
}

// HostMetrics is the root of the tree. It is constructed once per process
// and handed to every application explicitly.
type HostMetrics struct {
	CommonMetrics

	id   string
	name string
	cfg  Config

	appsMu sync.RWMutex
	apps   map[uint32]*ApplicationMetrics
}

// NewHostMetrics creates the root aggregator.
func NewHostMetrics(id, name string, cfg Config) *HostMetrics {
	h := &HostMetrics{
		id:   id,
		name: name,
		cfg:  cfg,
		apps: make(map[uint32]*ApplicationMetrics),
	}
	h.init(cfg.Clock)
	return h
}

// ID returns the host id.
func (h *HostMetrics) ID() string { return h.id }

// Name returns the host name.
func (h *HostMetrics) Name() string { return h.name }

// OnApplicationCreated registers an application. Creating an id that
// already exists is a successful no-op.
func (h *HostMetrics) OnApplicationCreated(app core.ApplicationDescriptor) error {
	h.appsMu.Lock()
	if _, ok := h.apps[app.ID]; ok {
		h.appsMu.Unlock()
		return nil
	}
	h.apps[app.ID] = NewApplicationMetrics(h, app)
	h.appsMu.Unlock()

	log.WithFields(logging.Fields{"app": app.Name, "app_id": app.ID}).Info("Create ApplicationMetrics for monitoring")
	return nil
}

// OnApplicationDeleted removes an application and subtracts the sessions
// it still holds from the host.
func (h *HostMetrics) OnApplicationDeleted(app core.ApplicationDescriptor) error {
	h.appsMu.Lock()
	am, ok := h.apps[app.ID]
	if ok {
		delete(h.apps, app.ID)
	}
	h.appsMu.Unlock()
	if !ok {
		return fmt.Errorf("application %d: %w", app.ID, ErrNotFound)
	}

	for _, t := range core.PublisherTypes() {
		h.OnSessionsDisconnected(t, am.GetConnections(t))
	}

	log.WithFields(logging.Fields{"app": am.name, "app_id": am.id}).Info("Delete ApplicationMetrics for monitoring")
	return nil
}

// GetApplicationMetrics returns the application with the given id, or nil.
func (h *HostMetrics) GetApplicationMetrics(id uint32) *ApplicationMetrics {
	h.appsMu.RLock()
	defer h.appsMu.RUnlock()
	return h.apps[id]
}

// GetApplicationMetricsMap returns a copy of the application map whose
// entries are the live aggregators.
func (h *HostMetrics) GetApplicationMetricsMap() map[uint32]*ApplicationMetrics {
	h.appsMu.RLock()
	defer h.appsMu.RUnlock()
	out := make(map[uint32]*ApplicationMetrics, len(h.apps))
	for id, am := range h.apps {
		out[id] = am
	}
	return out
}

// GetInfo returns the host's info record, with applications (and their
// streams) when showChildren is set.
func (h *HostMetrics) GetInfo(showChildren bool) Info {
	info := Info{
		Kind:        KindHost,
		ID:          h.id,
		Name:        h.name,
		CreatedTime: h.CreatedTime(),
		Counters:    h.Snapshot(),
	}
	if !showChildren {
		return info
	}

	apps := h.GetApplicationMetricsMap()
	ids := make([]uint32, 0, len(apps))
	for id := range apps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		info.Children = append(info.Children, apps[id].GetInfo(true))
	}
	return info
}

// ShowInfo logs the host's info record.
func (h *HostMetrics) ShowInfo(showChildren bool) {
	h.GetInfo(showChildren).log()
}
