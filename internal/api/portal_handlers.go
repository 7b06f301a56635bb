package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"jalrakshak-monitor/internal/metrics"
	"jalrakshak-monitor/internal/models"
	"jalrakshak-monitor/internal/reconciler"
)

// ComplaintService is the synchronized complaint collection
type ComplaintService interface {
	Records() []models.Complaint
	Record(id string) (models.Complaint, bool)
	CreateRecord(ctx context.Context, in models.NewComplaint) (models.Complaint, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, adminResponse *string) (models.Complaint, error)
	Notifications() []models.Notification
	UnreadCount() int
	MarkNotificationRead(id string) bool
	MarkAllNotificationsRead() int
	State() reconciler.SyncState
}

// RiskSource serves the latest sample and assessment
type RiskSource interface {
	Assessment() (models.RiskAssessment, bool)
	Sample() (models.TelemetrySample, bool)
}

// AlertLister serves the active alerts
type AlertLister interface {
	List() []models.AlertEvent
}

// PortalServer serves citizens and administrators
type PortalServer struct {
	*Server
	complaints ComplaintService
	risk       RiskSource
	alerts     AlertLister
}

// NewPortalServer creates the portal API
func NewPortalServer(complaints ComplaintService, risk RiskSource, alerts AlertLister, logger *slog.Logger, m *metrics.Metrics) *PortalServer {
	s := &PortalServer{
		Server:     newServer(logger, m),
		complaints: complaints,
		risk:       risk,
		alerts:     alerts,
	}

	// Complaints
	s.router.HandleFunc("/api/v1/complaints", s.handleListComplaints).Methods("GET")
	s.router.HandleFunc("/api/v1/complaints", s.handleCreateComplaint).Methods("POST")
	s.router.HandleFunc("/api/v1/complaints/{id}", s.handleGetComplaint).Methods("GET")
	s.router.HandleFunc("/api/v1/complaints/{id}/status", s.handleUpdateStatus).Methods("PATCH")

	// Notifications
	s.router.HandleFunc("/api/v1/notifications", s.handleNotifications).Methods("GET")
	s.router.HandleFunc("/api/v1/notifications/read-all", s.handleReadAll).Methods("POST")
	s.router.HandleFunc("/api/v1/notifications/{id}/read", s.handleRead).Methods("POST")

	// Monitoring
	s.router.HandleFunc("/api/v1/risk", s.handleRisk).Methods("GET")
	s.router.HandleFunc("/api/v1/telemetry", s.handleTelemetry).Methods("GET")
	s.router.HandleFunc("/api/v1/alerts", s.handleAlerts).Methods("GET")
	s.router.HandleFunc("/api/v1/sync", s.handleSync).Methods("GET")
	return s
}

func (s *PortalServer) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, http.StatusBadRequest, "unknown status")
		return
	}
	owner := r.URL.Query().Get("owner_id")

	results := []models.Complaint{}
	for _, c := range s.complaints.Records() {
		if status != "" && c.Status != status {
			continue
		}
		if owner != "" && c.OwnerID != owner {
			continue
		}
		results = append(results, c)
	}

	respondWithMeta(w, results, &meta{Total: len(results)})
}

func (s *PortalServer) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	var in models.NewComplaint
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := s.complaints.CreateRecord(r.Context(), in)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *PortalServer) handleGetComplaint(w http.ResponseWriter, r *http.Request) {
	c, ok := s.complaints.Record(mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "complaint not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *PortalServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var upd models.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := s.complaints.UpdateStatus(r.Context(), mux.Vars(r)["id"], upd.Status, upd.AdminResponse)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *PortalServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	notes := s.complaints.Notifications()
	respondWithMeta(w, notes, &meta{
		Total:  len(notes),
		Unread: s.complaints.UnreadCount(),
	})
}

func (s *PortalServer) handleRead(w http.ResponseWriter, r *http.Request) {
	if !s.complaints.MarkNotificationRead(mux.Vars(r)["id"]) {
		respondError(w, http.StatusNotFound, "notification not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread": s.complaints.UnreadCount()})
}

func (s *PortalServer) handleReadAll(w http.ResponseWriter, r *http.Request) {
	n := s.complaints.MarkAllNotificationsRead()
	respondJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (s *PortalServer) handleRisk(w http.ResponseWriter, r *http.Request) {
	a, ok := s.risk.Assessment()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no telemetry received yet")
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *PortalServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.risk.Sample()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no telemetry received yet")
		return
	}
	respondJSON(w, http.StatusOK, sample)
}

func (s *PortalServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	list := s.alerts.List()
	if list == nil {
		list = []models.AlertEvent{}
	}
	respondWithMeta(w, list, &meta{Total: len(list)})
}

func (s *PortalServer) handleSync(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.complaints.State())
}
