package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"jalrakshak-monitor/internal/db"
	"jalrakshak-monitor/internal/metrics"
	"jalrakshak-monitor/internal/models"
)

// StoreServer is the complaint store the portal synchronizes against
type StoreServer struct {
	*Server
	db *db.Database
}

// NewStoreServer creates the store API over database
func NewStoreServer(database *db.Database, logger *slog.Logger, m *metrics.Metrics) *StoreServer {
	s := &StoreServer{Server: newServer(logger, m), db: database}
	s.router.HandleFunc("/api/complaints", s.handleListComplaints).Methods("GET")
	s.router.HandleFunc("/api/complaints", s.handleCreateComplaint).Methods("POST")
	s.router.HandleFunc("/api/complaints/{id}", s.handleGetComplaint).Methods("GET")
	s.router.HandleFunc("/api/complaints/{id}", s.handleUpdateComplaint).Methods("PATCH")
	s.router.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	return s
}

func (s *StoreServer) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := db.ComplaintQuery{Status: models.Status(r.URL.Query().Get("status"))}
	if q.Status != "" && !q.Status.Valid() {
		respondError(w, http.StatusBadRequest, "unknown status")
		return
	}
	var err error
	if q.Limit, err = queryInt(r, "limit", 0); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.db.ListComplaints(q)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	if results == nil {
		results = []models.Complaint{}
	}

	respondWithMeta(w, results, &meta{
		Total:   len(results),
		Limit:   q.Limit,
		Offset:  q.Offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *StoreServer) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	var in models.NewComplaint
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := in.Validate(); err != nil {
		s.respondFailure(w, err)
		return
	}

	c, err := s.db.CreateComplaint(in)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.log.Info("complaint_stored", "id", c.ID, "type", c.Type)
	respondJSON(w, http.StatusCreated, c)
}

func (s *StoreServer) handleGetComplaint(w http.ResponseWriter, r *http.Request) {
	c, err := s.db.GetComplaint(mux.Vars(r)["id"])
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *StoreServer) handleUpdateComplaint(w http.ResponseWriter, r *http.Request) {
	var upd models.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := upd.Validate(); err != nil {
		s.respondFailure(w, err)
		return
	}

	id := mux.Vars(r)["id"]
	c, err := s.db.UpdateComplaintStatus(id, upd)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.log.Info("complaint_status_stored", "id", id, "status", c.Status)
	respondJSON(w, http.StatusOK, c)
}

func (s *StoreServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
