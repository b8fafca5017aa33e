// Package api serves the monitoring tree over HTTP: engine event ingest,
// diagnostic snapshots, health and Prometheus scraping.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/events"
	"github.com/irctrakz/streammon/pkg/logging"
	"github.com/irctrakz/streammon/pkg/monitoring"
)

var log = logging.ForComponent("api")

// maxEventBytes bounds the body of a single event.
const maxEventBytes = 64 * 1024

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cfg        core.APIConfig
	dispatcher *events.Dispatcher
	gatherer   prometheus.Gatherer
	router     *mux.Router
}

// NewServer builds the router. gatherer may be nil to disable /metrics.
func NewServer(cfg core.APIConfig, dispatcher *events.Dispatcher, gatherer prometheus.Gatherer) *Server {
	s := &Server{cfg: cfg, dispatcher: dispatcher, gatherer: gatherer}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/events", s.eventHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/host", s.hostHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/apps/{app:[0-9]+}", s.appHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/apps/{app:[0-9]+}/streams", s.streamsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/apps/{app:[0-9]+}/streams/{stream:[0-9]+}", s.streamHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/apps/{app:[0-9]+}/reserved", s.reservedHandler).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.cfg.ListenAddr, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("API server starting on %s", ln.Addr())
		errc <- server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("API server exited.")
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) eventHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}
	ev, err := events.Decode(body)
	if err == nil {
		err = s.dispatcher.Dispatch(ev)
	}
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, events.ErrInvalidEvent):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, monitoring.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, monitoring.ErrAllocation):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		log.WithError(err).Error("Event dispatch failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) hostHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.dispatcher.Host().GetInfo(showChildren(r)))
}

func (s *Server) appHandler(w http.ResponseWriter, r *http.Request) {
	app, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	writeJSON(w, app.GetInfo(showChildren(r)))
}

func (s *Server) streamsHandler(w http.ResponseWriter, r *http.Request) {
	app, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	streams := app.GetStreamMetricsMap()
	out := make([]monitoring.Info, 0, len(streams))
	for _, sm := range streams {
		out = append(out, sm.GetInfo())
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseUint(out[i].ID, 10, 32)
		b, _ := strconv.ParseUint(out[j].ID, 10, 32)
		return a < b
	})
	writeJSON(w, out)
}

func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	app, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	id, _ := strconv.ParseUint(mux.Vars(r)["stream"], 10, 32)
	sm := app.GetStreamMetrics(uint32(id))
	if sm == nil {
		http.Error(w, fmt.Sprintf("stream %d: %v", id, monitoring.ErrNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, sm.GetInfo())
}

func (s *Server) reservedHandler(w http.ResponseWriter, r *http.Request) {
	app, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	reserved := app.GetReservedStreamMetricsMap()
	out := make([]monitoring.ReservationInfo, 0, len(reserved))
	for _, rs := range reserved {
		out = append(out, rs.GetInfo())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	writeJSON(w, out)
}

func (s *Server) lookupApp(w http.ResponseWriter, r *http.Request) (*monitoring.ApplicationMetrics, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["app"], 10, 32)
	if err != nil {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return nil, false
	}
	app := s.dispatcher.Host().GetApplicationMetrics(uint32(id))
	if app == nil {
		http.Error(w, fmt.Sprintf("application %d: %v", id, monitoring.ErrNotFound), http.StatusNotFound)
		return nil, false
	}
	return app, true
}

func showChildren(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("children"))
	return v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
