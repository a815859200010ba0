package api

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Priya8975/donate/internal/money"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// DefaultStatic returns the assets bundled with the binary.
func DefaultStatic() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var presetCents = []int64{2500, 5000, 10000, 25000}

type preset struct {
	Label string
	Path  string
}

type formPage struct {
	Title     string
	Amount    string
	Frequency string
	Email     string
	Error     string
	MaxAmount string
	Presets   []preset
	Tags      []campaignTag
}

type resultPage struct {
	Title     string
	SessionID string
}

// PageHandler renders the donation form and the checkout result pages, and
// starts checkout sessions.
type PageHandler struct {
	checkout  CheckoutCreator
	limiter   Limiter
	rateLimit int
	maxCents  int64
	logger    *slog.Logger
}

func NewPageHandler(checkout CheckoutCreator, limiter Limiter, rateLimit int, maxCents int64, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		checkout:  checkout,
		limiter:   limiter,
		rateLimit: rateLimit,
		maxCents:  maxCents,
		logger:    logger,
	}
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, http.StatusOK, h.newForm(r.URL.Query()))
}

// Donate renders the form with the amount from the path filled in.
func (h *PageHandler) Donate(w http.ResponseWriter, r *http.Request) {
	cents, ok := money.ParseCents(chi.URLParam(r, "amount"))
	if !ok || cents > h.maxCents {
		http.NotFound(w, r)
		return
	}

	form := h.newForm(r.URL.Query())
	form.Amount = money.FormatCents(cents)
	h.renderForm(w, http.StatusOK, form)
}

func (h *PageHandler) Success(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "success.html", resultPage{
		Title:     "Thank you",
		SessionID: r.URL.Query().Get("session_id"),
	})
}

func (h *PageHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "cancel.html", resultPage{Title: "Donation canceled"})
}

// newForm builds an empty form carrying any campaign tags found in values,
// so preset links and the submitted form keep them.
func (h *PageHandler) newForm(values url.Values) formPage {
	tags := campaignTags(values)
	query := ""
	if len(tags) > 0 {
		q := url.Values{}
		for _, t := range tags {
			q.Set(t.Name, t.Value)
		}
		query = "?" + q.Encode()
	}

	presets := make([]preset, 0, len(presetCents))
	for _, c := range presetCents {
		if c > h.maxCents {
			continue
		}
		presets = append(presets, preset{
			Label: money.FormatDollars(c),
			Path:  "/donate/" + money.FormatCents(c) + query,
		})
	}
	return formPage{
		Title:     "Donate",
		MaxAmount: money.FormatDollars(h.maxCents),
		Presets:   presets,
		Tags:      tags,
	}
}

func (h *PageHandler) renderForm(w http.ResponseWriter, status int, form formPage) {
	h.render(w, status, "index.html", form)
}

func (h *PageHandler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
