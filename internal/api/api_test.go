package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Priya8975/donate/internal/domain"
	"github.com/Priya8975/donate/internal/resilience"
	"github.com/Priya8975/donate/internal/store"
	"github.com/Priya8975/donate/internal/webhook"
)

type fakeCheckout struct {
	requests []domain.CheckoutRequest
	url      string
	err      error
}

func (f *fakeCheckout) CreateCheckoutSession(_ context.Context, req domain.CheckoutRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeLimiter struct {
	allow bool
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int) bool {
	f.keys = append(f.keys, key)
	return f.allow
}

type fakeDispatcher struct {
	payload []byte
	header  string
	outcome webhook.Outcome
}

func (f *fakeDispatcher) Handle(_ context.Context, payload []byte, header string) webhook.Outcome {
	f.payload = payload
	f.header = header
	return f.outcome
}

type fakeMetrics struct {
	totals *store.DonationTotals
	events []domain.AnalyticsEvent
	err    error
	limit  int
	name   string
}

func (f *fakeMetrics) GetDonationTotals(context.Context) (*store.DonationTotals, error) {
	return f.totals, f.err
}

func (f *fakeMetrics) ListAnalyticsEvents(_ context.Context, name string, limit int) ([]domain.AnalyticsEvent, error) {
	f.name = name
	f.limit = limit
	return f.events, f.err
}

type fakeBreaker struct{}

func (fakeBreaker) GetState(context.Context, string) resilience.CircuitBreakerState {
	return resilience.CircuitBreakerState{State: resilience.StateOpen, Failures: 5}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDeps() Deps {
	return Deps{
		Dispatcher:        &fakeDispatcher{outcome: webhook.Outcome{Status: webhook.StatusHandled}},
		Checkout:          &fakeCheckout{url: "https://checkout.stripe.com/c/pay/cs_test_1"},
		Assets:            NewAssetCache(DefaultStatic(), time.Hour),
		Logger:            testLogger(),
		MaxDonationCents:  1000000,
		CheckoutRateLimit: 10,
	}
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// --- pages ---

func TestPages(t *testing.T) {
	h := NewRouter(testDeps())

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/", http.StatusOK, "Make a donation"},
		{"/donate/25", http.StatusOK, `value="25.00"`},
		{"/donate/1,000.50", http.StatusOK, `value="1000.50"`},
		{"/donate/25/", http.StatusOK, `value="25.00"`},
		{"/donate/abc", http.StatusNotFound, ""},
		{"/donate/0", http.StatusNotFound, ""},
		{"/donate/20000", http.StatusNotFound, ""},
		{"/success?session_id=cs_test_1", http.StatusOK, "cs_test_1"},
		{"/cancel", http.StatusOK, "Donation canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(h, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}
}

func TestIndex_PresetsRespectMax(t *testing.T) {
	deps := testDeps()
	deps.MaxDonationCents = 5000
	body := get(NewRouter(deps), "/").Body.String()

	if !strings.Contains(body, "/donate/50.00") {
		t.Error("expected $50 preset")
	}
	if strings.Contains(body, "/donate/100.00") {
		t.Error("presets above the max should be hidden")
	}
}

// --- checkout ---

func TestCreateCheckoutSession(t *testing.T) {
	deps := testDeps()
	checkout := deps.Checkout.(*fakeCheckout)
	h := NewRouter(deps)

	rec := postForm(h, "/create-checkout-session", url.Values{
		"amount":    {"$1,234.56"},
		"frequency": {"monthly"},
		"email":     {"jane@example.org"},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != checkout.url {
		t.Errorf("Location = %q", loc)
	}
	if len(checkout.requests) != 1 {
		t.Fatalf("expected 1 checkout request, got %d", len(checkout.requests))
	}
	got := checkout.requests[0]
	if got.AmountCents != 123456 || got.Frequency != domain.FrequencyMonthly || got.Email != "jane@example.org" {
		t.Errorf("request = %+v", got)
	}
	if got.Metadata != nil {
		t.Errorf("Metadata = %v, want none without campaign fields", got.Metadata)
	}
}

func TestCreateCheckoutSession_CampaignTags(t *testing.T) {
	deps := testDeps()
	checkout := deps.Checkout.(*fakeCheckout)

	rec := postForm(NewRouter(deps), "/create-checkout-session", url.Values{
		"amount":     {"25"},
		"campaign":   {" spring-appeal "},
		"utm_source": {"newsletter"},
		"utm_medium": {""},
		"app":        {"spoofed"},
		"notes":      {"free text"},
		"source":     {strings.Repeat("x", 300)},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	md := checkout.requests[0].Metadata
	if md["campaign"] != "spring-appeal" || md["utm_source"] != "newsletter" {
		t.Errorf("Metadata = %v", md)
	}
	if len(md["source"]) != maxTagLen {
		t.Errorf("source length = %d, want %d", len(md["source"]), maxTagLen)
	}
	for _, key := range []string{"app", "notes", "utm_medium"} {
		if _, ok := md[key]; ok {
			t.Errorf("unexpected metadata key %q", key)
		}
	}
}

func TestIndex_CarriesCampaignTags(t *testing.T) {
	h := NewRouter(testDeps())

	body := get(h, "/?campaign=spring&ref=ignored").Body.String()
	if !strings.Contains(body, `<input type="hidden" name="campaign" value="spring">`) {
		t.Error("campaign should be carried as a hidden field")
	}
	if strings.Contains(body, "ignored") {
		t.Error("unknown query fields should not be rendered")
	}
	if !strings.Contains(body, "/donate/25.00?campaign=spring") {
		t.Error("preset links should keep the campaign")
	}

	body = get(h, "/donate/50?utm_source=mail").Body.String()
	if !strings.Contains(body, `name="utm_source" value="mail"`) {
		t.Error("amount pages should carry campaign tags too")
	}
}

func TestCreateCheckoutSession_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		status int
		msg    string
	}{
		{"empty", "", http.StatusBadRequest, "Please enter a dollar amount"},
		{"leading zero", "01234", http.StatusBadRequest, "Please enter a dollar amount"},
		{"negative", "-$100", http.StatusBadRequest, "Please enter a dollar amount"},
		{"one decimal", "100.0", http.StatusBadRequest, "Please enter a dollar amount"},
		{"above max", "10,000.01", http.StatusBadRequest, "limited to $10,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			checkout := deps.Checkout.(*fakeCheckout)

			rec := postForm(NewRouter(deps), "/create-checkout-session", url.Values{"amount": {tt.amount}})

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.msg) {
				t.Errorf("body does not contain %q", tt.msg)
			}
			if len(checkout.requests) != 0 {
				t.Error("invalid forms must not reach the processor")
			}
		})
	}
}

func TestCreateCheckoutSession_RateLimited(t *testing.T) {
	deps := testDeps()
	limiter := &fakeLimiter{allow: false}
	deps.Limiter = limiter
	checkout := deps.Checkout.(*fakeCheckout)

	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", strings.NewReader("amount=25"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "checkout:203.0.113.7" {
		t.Errorf("limiter keys = %v", limiter.keys)
	}
	if len(checkout.requests) != 0 {
		t.Error("limited requests must not reach the processor")
	}
}

func TestCreateCheckoutSession_ProcessorError(t *testing.T) {
	deps := testDeps()
	deps.Checkout.(*fakeCheckout).err = errors.New("stripe unavailable")

	rec := postForm(NewRouter(deps), "/create-checkout-session", url.Values{"amount": {"25"}})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "stripe unavailable") {
		t.Error("provider errors should not be shown to donors")
	}
}

// --- webhook ---

func TestWebhook(t *testing.T) {
	tests := []struct {
		name    string
		outcome webhook.Outcome
		status  int
		errText string
	}{
		{"handled", webhook.Outcome{Status: webhook.StatusHandled, EventID: "evt_1", Note: "receipt sent"}, http.StatusOK, ""},
		{"unhandled", webhook.Outcome{Status: webhook.StatusUnhandled, EventID: "evt_1"}, http.StatusOK, ""},
		{
			"rejected",
			webhook.Outcome{Status: webhook.StatusRejected, Err: webhook.ErrInvalidSignature},
			http.StatusBadRequest,
			"invalid webhook signature",
		},
		{
			"email failed",
			webhook.Outcome{Status: webhook.StatusFailed, Err: errors.Join(webhook.ErrEmailDeliveryFailed, errors.New("sendgrid said no: key=SG.secret"))},
			http.StatusBadRequest,
			"email delivery failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			dispatcher := &fakeDispatcher{outcome: tt.outcome}
			deps.Dispatcher = dispatcher

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rec := httptest.NewRecorder()
			NewRouter(deps).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if string(dispatcher.payload) != `{"id":"evt_1"}` || dispatcher.header != "t=1,v1=abc" {
				t.Errorf("dispatcher got payload %q header %q", dispatcher.payload, dispatcher.header)
			}

			var resp webhookResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.outcome.Status.String() || resp.Error != tt.errText {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	deps := testDeps()
	dispatcher := &fakeDispatcher{}
	deps.Dispatcher = dispatcher

	body := strings.Repeat("a", maxWebhookBody+1)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if dispatcher.payload != nil {
		t.Error("oversized bodies must not be dispatched")
	}
}

// --- dashboard ---

func TestMetrics(t *testing.T) {
	deps := testDeps()
	deps.Store = &fakeMetrics{totals: &store.DonationTotals{Count: 3, TotalCents: 7500}}
	deps.Breaker = fakeBreaker{}

	rec := get(NewRouter(deps), "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp metricsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Donations == nil || resp.Donations.TotalCents != 7500 {
		t.Errorf("donations = %+v", resp.Donations)
	}
	if resp.EmailCircuit == nil || resp.EmailCircuit.State != resilience.StateOpen {
		t.Errorf("email circuit = %+v", resp.EmailCircuit)
	}
}

func TestMetrics_NoBackingServices(t *testing.T) {
	rec := get(NewRouter(testDeps()), "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "donations") {
		t.Error("donations should be omitted without a store")
	}
}

func TestEvents(t *testing.T) {
	tests := []struct {
		query     string
		status    int
		wantLimit int
	}{
		{"", http.StatusOK, 50},
		{"?limit=10&name=donation_failed", http.StatusOK, 10},
		{"?limit=100000", http.StatusOK, 500},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			deps := testDeps()
			metrics := &fakeMetrics{}
			deps.Store = metrics

			rec := get(NewRouter(deps), "/api/v1/events"+tt.query)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if metrics.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", metrics.limit, tt.wantLimit)
			}
			if tt.status == http.StatusOK && strings.TrimSpace(rec.Body.String()) != "[]" {
				t.Errorf("body = %q, want []", rec.Body.String())
			}
		})
	}
}

func TestEvents_OmitsDonorEmail(t *testing.T) {
	deps := testDeps()
	deps.Store = &fakeMetrics{events: []domain.AnalyticsEvent{{
		ID:   "1",
		Name: domain.EventDonationReceived,
		Properties: map[string]string{
			"email":     "jane@example.org",
			"name":      "Jane Doe",
			"frequency": "one-time",
		},
		Value: 2500,
	}}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "jane@example.org") {
		t.Errorf("response leaks donor email: %s", rec.Body.String())
	}

	var events []domain.AnalyticsEvent
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].Properties["email"]; ok {
		t.Error("email key should not be served")
	}
	if events[0].Properties["frequency"] != "one-time" || events[0].Value != 2500 {
		t.Errorf("event = %+v", events[0])
	}
}

func TestEvents_NoStore(t *testing.T) {
	if rec := get(NewRouter(testDeps()), "/api/v1/events"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	deps := testDeps()
	deps.HealthChecks = map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}

	rec := get(NewRouter(deps), "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" || resp.Checks["postgres"] != "ok" || resp.Checks["redis"] != "connection refused" {
		t.Errorf("response = %+v", resp)
	}

	if rec := get(NewRouter(testDeps()), "/api/v1/health"); rec.Code != http.StatusOK {
		t.Errorf("status without checks = %d, want 200", rec.Code)
	}
}
