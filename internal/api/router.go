package api

import (
	"log/slog"
	"net/http"

	ws "github.com/Priya8975/donate/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the router wires into handlers. Limiter,
// Store, Breaker and HealthChecks are optional.
type Deps struct {
	Dispatcher   Dispatcher
	Checkout     CheckoutCreator
	Limiter      Limiter
	Store        MetricsStore
	Breaker      BreakerReporter
	Hub          *ws.Hub
	Assets       *AssetCache
	HealthChecks map[string]HealthCheck
	Logger       *slog.Logger

	CanonicalHost     string
	MaxDonationCents  int64
	CheckoutRateLimit int
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(canonicalHost(d.CanonicalHost, "/webhook", "/ping", "/api/v1/health"))

	pages := NewPageHandler(d.Checkout, d.Limiter, d.CheckoutRateLimit, d.MaxDonationCents, d.Logger)
	hooks := NewWebhookHandler(d.Dispatcher, d.Logger)
	dash := NewDashboardHandler(d.Store, d.Breaker, d.Hub)

	// Donor pages
	r.Get("/", pages.Index)
	r.Get("/donate/{amount}", pages.Donate)
	r.Get("/donate/{amount}/", pages.Donate)
	r.Post("/create-checkout-session", pages.CreateCheckoutSession)
	r.Get("/success", pages.Success)
	r.Get("/cancel", pages.Cancel)

	// Processor callbacks
	r.Post("/webhook", hooks.Receive)

	if d.Assets != nil {
		r.Handle("/static/*", d.Assets.Handler("/static/"))
		r.Get("/api/data", d.Assets.File("data.json"))
	}

	if d.Hub != nil {
		r.Get("/ws", d.Hub.HandleWebSocket)
	}

	// Dashboard API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(corsMiddleware)

		r.Get("/health", HealthHandler(d.HealthChecks))
		r.Get("/metrics", dash.Metrics)
		r.Get("/events", dash.Events)
	})

	return r
}
