// Package web provides the flow-monitor dashboard and control API.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/flow-monitor/internal/metrics"
	"github.com/sweeney/flow-monitor/internal/sim"
	"github.com/sweeney/flow-monitor/internal/status"
)

// Actions is the simulator surface the control API needs.
// *sim.Simulator satisfies it.
type Actions interface {
	ToggleForcedLeak() bool
	AcknowledgeAlert() bool
	ResetDay()
	Snapshot() sim.Snapshot
}

// Options wires the server's collaborators. Tracker and Sim are
// required; the rest enable optional routes.
type Options struct {
	Tracker  *status.Tracker
	Sim      Actions
	Hub      *Hub                // nil disables /live
	Metrics  *metrics.Metrics    // nil disables action counters
	Gatherer prometheus.Gatherer // nil disables /metrics
	OnEvent  func(sim.Event)     // notified of operator-driven detector transitions
}

// Server serves the dashboard, control API, and metrics over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	sim        Actions
	hub        *Hub
	metrics    *metrics.Metrics
	onEvent    func(sim.Event)
}

// New creates a Server listening on addr.
func New(addr string, opts Options) *Server {
	s := &Server{
		tracker: opts.Tracker,
		sim:     opts.Sim,
		hub:     opts.Hub,
		metrics: opts.Metrics,
		onEvent: opts.OnEvent,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	r.HandleFunc("/healthz", handleHealth).Methods("GET")
	r.HandleFunc("/api/leak/toggle", s.handleToggleLeak).Methods("POST")
	r.HandleFunc("/api/alert/acknowledge", s.handleAcknowledge).Methods("POST")
	r.HandleFunc("/api/day/reset", s.handleResetDay).Methods("POST")
	if s.hub != nil {
		r.HandleFunc("/live", s.hub.handleLive).Methods("GET")
	}
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handlers.LoggingHandler(os.Stdout, r),
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.CloseAll()
	}
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// refresh pushes the post-action state to the tracker and live clients,
// so reads are coherent without waiting for the next tick.
func (s *Server) refresh() sim.Snapshot {
	snap := s.sim.Snapshot()
	s.tracker.Update(snap)
	if s.hub != nil {
		s.hub.Broadcast(FrameFromSnapshot(snap))
	}
	return snap
}

func (s *Server) handleToggleLeak(w http.ResponseWriter, _ *http.Request) {
	forced := s.sim.ToggleForcedLeak()
	s.refresh()
	writeJSON(w, map[string]any{"forced_leak": forced})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, _ *http.Request) {
	acked := s.sim.AcknowledgeAlert()
	if acked && s.metrics != nil {
		s.metrics.AlertsAcknowledgedTotal.Inc()
	}
	snap := s.refresh()
	if acked && s.onEvent != nil {
		s.onEvent(sim.Event{
			Timestamp:   time.Now(),
			Type:        sim.EventLeakAcknowledged,
			FlowLPerMin: snap.CurrentFlowLPerMin,
		})
	}
	writeJSON(w, map[string]any{"acknowledged": acked, "leak_flagged": false})
}

func (s *Server) handleResetDay(w http.ResponseWriter, _ *http.Request) {
	s.sim.ResetDay()
	if s.metrics != nil {
		s.metrics.DayResetsTotal.Inc()
	}
	snap := s.refresh()
	writeJSON(w, map[string]any{"reset": true, "forced_leak": snap.ForcedLeak})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
