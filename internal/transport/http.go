package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/domain/summary"
)

// EventService records normalized activity events.
type EventService interface {
	Record(ctx context.Context, resourceID, callerTenantID string, req event.CreateRequest) (*event.Event, error)
}

// DigestService generates digests on demand.
type DigestService interface {
	Generate(ctx context.Context, eventID, resourceID, callerTenantID string) (*digest.Digest, string, error)
}

// SummaryService generates and lists period rollups.
type SummaryService interface {
	GenerateForPeriod(ctx context.Context, resourceID, callerTenantID string, g summary.Granularity, periodStart time.Time) (*summary.Summary, error)
	ListForRange(ctx context.Context, resourceID, callerTenantID string, g summary.Granularity, from, to time.Time) ([]summary.Summary, error)
}

// ResourceService lists the caller tenant's resources.
type ResourceService interface {
	ListForTenant(ctx context.Context, tenantID string) ([]resource.Resource, error)
}

// Server wires HTTP handlers.
type Server struct {
	events    EventService
	digests   DigestService
	summaries SummaryService
	resources ResourceService
}

// NewServer creates an HTTP router with middleware.
func NewServer(events EventService, digests DigestService, summaries SummaryService, resources ResourceService, authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	srv := &Server{events: events, digests: digests, summaries: summaries, resources: resources}

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Get("/v1/resources", srv.handleListResources)
		r.Post("/v1/events", srv.handleRecordEvent)
		r.Post("/v1/digests/generate", srv.handleGenerateDigest)
		r.Post("/v1/summaries/generate", srv.handleGenerateSummary)
		r.Get("/v1/summaries", srv.handleListSummaries)
	})

	return r
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok || tenantID == "" {
		http.Error(w, "missing tenant", http.StatusUnauthorized)
		return
	}

	list, err := s.resources.ListForTenant(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"resources": list})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type recordEventRequest struct {
	ResourceID string              `json:"resource_id"`
	Event      event.CreateRequest `json:"event"`
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok || tenantID == "" {
		http.Error(w, "missing tenant", http.StatusUnauthorized)
		return
	}

	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ResourceID == "" {
		http.Error(w, "resource_id is required", http.StatusBadRequest)
		return
	}

	ev, err := s.events.Record(r.Context(), req.ResourceID, tenantID, req.Event)
	if err != nil {
		if errors.Is(err, event.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ev)
}

type generateDigestRequest struct {
	EventID    string `json:"event_id"`
	ResourceID string `json:"resource_id"`
}

type generateDigestResponse struct {
	Digest     *digest.Digest `json:"digest"`
	TrackingID string         `json:"tracking_id"`
}

func (s *Server) handleGenerateDigest(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok || tenantID == "" {
		http.Error(w, "missing tenant", http.StatusUnauthorized)
		return
	}

	var req generateDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.EventID == "" || req.ResourceID == "" {
		http.Error(w, "event_id and resource_id are required", http.StatusBadRequest)
		return
	}

	d, trackingID, err := s.digests.Generate(r.Context(), req.EventID, req.ResourceID, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateDigestResponse{Digest: d, TrackingID: trackingID})
}

type generateSummaryRequest struct {
	ResourceID  string `json:"resource_id"`
	Granularity string `json:"granularity"`
	PeriodStart string `json:"period_start"`
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok || tenantID == "" {
		http.Error(w, "missing tenant", http.StatusUnauthorized)
		return
	}

	var req generateSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	periodStart, err := time.Parse(time.RFC3339, req.PeriodStart)
	if err != nil {
		http.Error(w, "period_start must be RFC 3339", http.StatusBadRequest)
		return
	}

	sum, err := s.summaries.GenerateForPeriod(r.Context(), req.ResourceID, tenantID,
		summary.Granularity(req.Granularity), periodStart)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if sum == nil {
		// No digests in the period: absence, not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok || tenantID == "" {
		http.Error(w, "missing tenant", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	resourceID := q.Get("resource_id")
	if resourceID == "" {
		http.Error(w, "resource_id is required", http.StatusBadRequest)
		return
	}

	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		http.Error(w, "from must be RFC 3339", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		http.Error(w, "to must be RFC 3339", http.StatusBadRequest)
		return
	}

	list, err := s.summaries.ListForRange(r.Context(), resourceID, tenantID,
		summary.Granularity(q.Get("granularity")), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"summaries": list})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resource.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusForbidden)
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, digest.ErrDigestNotFound),
		errors.Is(err, summary.ErrSummaryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, summary.ErrInvalidGranularity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
