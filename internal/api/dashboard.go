package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Priya8975/donate/internal/domain"
	"github.com/Priya8975/donate/internal/resilience"
	"github.com/Priya8975/donate/internal/store"
	ws "github.com/Priya8975/donate/internal/websocket"
)

// MetricsStore reads the analytics table. store.PostgresStore satisfies it.
type MetricsStore interface {
	GetDonationTotals(ctx context.Context) (*store.DonationTotals, error)
	ListAnalyticsEvents(ctx context.Context, name string, limit int) ([]domain.AnalyticsEvent, error)
}

// BreakerReporter exposes circuit state. resilience.CircuitBreaker
// satisfies it.
type BreakerReporter interface {
	GetState(ctx context.Context, dependency string) resilience.CircuitBreakerState
}

type DashboardHandler struct {
	store   MetricsStore
	breaker BreakerReporter
	hub     *ws.Hub
}

func NewDashboardHandler(s MetricsStore, breaker BreakerReporter, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{store: s, breaker: breaker, hub: hub}
}

type metricsResponse struct {
	Donations        *store.DonationTotals            `json:"donations,omitempty"`
	EmailCircuit     *resilience.CircuitBreakerState `json:"email_circuit,omitempty"`
	WebSocketClients int                             `json:"websocket_clients"`
}

// Metrics returns donation totals, email circuit state and live-feed
// client count. Sections whose backing service is not configured are
// omitted.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	var resp metricsResponse

	if h.store != nil {
		totals, err := h.store.GetDonationTotals(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to get metrics")
			return
		}
		resp.Donations = totals
	}
	if h.breaker != nil {
		state := h.breaker.GetState(r.Context(), "email")
		resp.EmailCircuit = &state
	}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
	}

	respondJSON(w, http.StatusOK, resp)
}

// Events lists recent analytics events, newest first.
func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "analytics storage is not configured")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	events, err := h.store.ListAnalyticsEvents(r.Context(), r.URL.Query().Get("name"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	public := make([]domain.AnalyticsEvent, 0, len(events))
	for _, e := range events {
		public = append(public, redactEvent(e))
	}

	respondJSON(w, http.StatusOK, public)
}

// privateProperties are stored for receipts and reconciliation but never
// served by the dashboard API, which is readable from any origin.
var privateProperties = map[string]bool{
	"email": true,
}

func redactEvent(e domain.AnalyticsEvent) domain.AnalyticsEvent {
	props := make(map[string]string, len(e.Properties))
	for k, v := range e.Properties {
		if !privateProperties[k] {
			props[k] = v
		}
	}
	e.Properties = props
	return e
}
