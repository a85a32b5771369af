package node

import (
	"encoding/json"
	"errors"
	"net/http"

	"nodewatch/internal/basenode"
	"nodewatch/internal/explorer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// apiFunc returns a JSON body and a status code
type apiFunc func(r *http.Request) (interface{}, int)

type apiError struct {
	Error string `json:"error"`
}

type syncResponse struct {
	Running      bool              `json:"running"`
	Percentage   float64           `json:"percentage"`
	Fields       map[string]string `json:"fields"`
	SyncedHeight uint64            `json:"synced_height"`
}

type orphanResponse struct {
	IsOrphan bool `json:"is_orphan"`
}

type peersResponse struct {
	Peers []string `json:"peers"`
}

// Router returns the status API
func (s *Supervisor) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.api(s.getStatus)).Methods(http.MethodGet)
	r.HandleFunc("/health", s.api(s.getHealth)).Methods(http.MethodGet)
	r.HandleFunc("/sync", s.api(s.getSync)).Methods(http.MethodGet)
	r.HandleFunc("/sync/start", s.api(s.startSync)).Methods(http.MethodPost)
	r.HandleFunc("/sync/stop", s.api(s.stopSync)).Methods(http.MethodPost)
	r.HandleFunc("/orphan", s.api(s.getOrphan)).Methods(http.MethodGet)
	r.HandleFunc("/peers", s.api(s.getPeers)).Methods(http.MethodGet)
	r.HandleFunc("/identity", s.api(s.getIdentity)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/ws", s.ws).Methods(http.MethodGet)
	return r
}

func (s *Supervisor) api(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, code := fn(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if body == nil {
			return
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.WithError(err).WithField("path", r.URL.Path).Debug("Failed to write response")
		}
	}
}

// errorResponse maps node and explorer failures onto status codes
func errorResponse(err error) (interface{}, int) {
	code := http.StatusInternalServerError
	switch {
	case isNodeDown(err):
		code = http.StatusServiceUnavailable
	case errors.Is(err, explorer.ErrBlockNotFound), errors.Is(err, basenode.ErrMissingBlockData):
		code = http.StatusBadGateway
	}
	return apiError{Error: err.Error()}, code
}

func (s *Supervisor) getStatus(r *http.Request) (interface{}, int) {
	return s.monitor.Status().Borrow(), http.StatusOK
}

func (s *Supervisor) getHealth(r *http.Request) (interface{}, int) {
	report, ok := s.LastHealth()
	if !ok {
		return apiError{Error: "no health check has run yet"}, http.StatusServiceUnavailable
	}
	return report, http.StatusOK
}

func (s *Supervisor) syncState() syncResponse {
	return syncResponse{
		Running:      s.syncer.IsRunning(),
		Percentage:   s.syncer.Percentage().Borrow(),
		Fields:       s.syncer.Fields().Borrow(),
		SyncedHeight: s.syncer.SyncedHeight(),
	}
}

func (s *Supervisor) getSync(r *http.Request) (interface{}, int) {
	if s.syncer == nil {
		return apiError{Error: "sync not configured"}, http.StatusNotFound
	}
	return s.syncState(), http.StatusOK
}

func (s *Supervisor) startSync(r *http.Request) (interface{}, int) {
	if s.syncer == nil {
		return apiError{Error: "sync not configured"}, http.StatusNotFound
	}
	// the wait outlives the request
	if err := s.syncer.Start(s.ctx); err != nil {
		return errorResponse(err)
	}
	return s.syncState(), http.StatusAccepted
}

func (s *Supervisor) stopSync(r *http.Request) (interface{}, int) {
	if s.syncer == nil {
		return apiError{Error: "sync not configured"}, http.StatusNotFound
	}
	s.syncer.Stop()
	return s.syncState(), http.StatusOK
}

func (s *Supervisor) getOrphan(r *http.Request) (interface{}, int) {
	orphaned, err := s.CheckOrphan(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	return orphanResponse{IsOrphan: orphaned}, http.StatusOK
}

func (s *Supervisor) getPeers(r *http.Request) (interface{}, int) {
	peers, err := s.client.ListConnectedPeers(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	if peers == nil {
		peers = []string{}
	}
	return peersResponse{Peers: peers}, http.StatusOK
}

func (s *Supervisor) getIdentity(r *http.Request) (interface{}, int) {
	id, err := s.client.Identify(r.Context())
	if err != nil {
		return errorResponse(err)
	}
	return id, http.StatusOK
}
