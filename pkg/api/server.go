package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hueshift/hueshift/pkg/events"
	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/metrics"
	"github.com/hueshift/hueshift/pkg/orchestrator"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
)

// Server exposes the control API over HTTP/JSON.
type Server struct {
	orch     *orchestrator.Orchestrator
	registry *registry.Registry
	store    storage.Store
	defaults types.RolloutParams
	broker   *events.Broker
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates the API server. defaults fill in rollout
// parameters a deployment request leaves unset.
func NewServer(orch *orchestrator.Orchestrator, reg *registry.Registry, store storage.Store, defaults types.RolloutParams) *Server {
	s := &Server{
		orch:     orch,
		registry: reg,
		store:    store,
		defaults: defaults,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/v1/deployments", s.deploymentsHandler)
	s.mux.HandleFunc("/v1/slots", s.slotsHandler)
	s.mux.HandleFunc("/v1/rollouts", s.rolloutsHandler)
	s.mux.HandleFunc("/v1/events", s.eventsHandler)
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/ready", s.readyHandler)
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

// Handler returns the server's routing handler wrapped with request
// instrumentation.
func (s *Server) Handler() http.Handler {
	return instrument(s.mux)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Minute, // deployments block until terminal
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API listening on " + addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// DeployRequest is the wire form of a deployment request. Fields left
// zero take server defaults.
type DeployRequest struct {
	Version    string `json:"version"`
	TargetSlot string `json:"target_slot,omitempty"`
	Replicas   int    `json:"replicas,omitempty"`
}

// DeployResponse wraps the rollout record with the resolved request
// identity.
type DeployResponse struct {
	RequestID string               `json:"request_id"`
	Record    *types.RolloutRecord `json:"record"`
	Error     string               `json:"error,omitempty"`
}

// deploymentsHandler triggers a rollout and blocks until it reaches a
// terminal state.
func (s *Server) deploymentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Version == "" {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}
	if body.TargetSlot != "" && !types.SlotID(body.TargetSlot).Valid() {
		writeError(w, http.StatusBadRequest, "invalid target slot: "+body.TargetSlot)
		return
	}

	params := s.defaults
	if body.Replicas > 0 {
		params.Replicas = body.Replicas
	}

	req := &types.DeploymentRequest{
		App:        s.registry.App(),
		TargetSlot: types.SlotID(body.TargetSlot),
		Version:    body.Version,
		Params:     params,
	}

	record, err := s.orch.Run(r.Context(), req)
	switch {
	case errors.Is(err, types.ErrSlotBusy), errors.Is(err, types.ErrActiveSlotProtected):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil && record == nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := DeployResponse{RequestID: req.ID, Record: record}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// SlotsResponse reports the registry's current view.
type SlotsResponse struct {
	App    string       `json:"app"`
	Active types.SlotID `json:"active"`
	Slots  []types.Slot `json:"slots"`
}

func (s *Server) slotsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := s.registry.GetActive()
	standby := s.registry.GetStandby()
	writeJSON(w, http.StatusOK, SlotsResponse{
		App:    s.registry.App(),
		Active: active.ID,
		Slots:  []types.Slot{active, standby},
	})
}

// RolloutsResponse lists rollout history oldest-first.
type RolloutsResponse struct {
	App      string                 `json:"app"`
	Rollouts []*types.RolloutRecord `json:"rollouts"`
}

func (s *Server) rolloutsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := s.store.ListRolloutRecords(s.registry.App())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RolloutsResponse{
		App:      s.registry.App(),
		Rollouts: records,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
