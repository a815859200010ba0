package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Priya8975/donate/internal/domain"
	"github.com/Priya8975/donate/internal/money"
)

const maxFormBody = 64 << 10

// campaignFields are the only form or query fields copied into checkout
// metadata. Values are capped well under the processor's 500 character limit.
var campaignFields = []string{"campaign", "source", "utm_source", "utm_medium", "utm_campaign"}

const maxTagLen = 100

type campaignTag struct {
	Name  string
	Value string
}

func campaignTags(values url.Values) []campaignTag {
	var tags []campaignTag
	for _, name := range campaignFields {
		v := strings.TrimSpace(values.Get(name))
		if v == "" {
			continue
		}
		if len(v) > maxTagLen {
			v = strings.ToValidUTF8(v[:maxTagLen], "")
		}
		tags = append(tags, campaignTag{Name: name, Value: v})
	}
	return tags
}

func tagMetadata(tags []campaignTag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Name] = t.Value
	}
	return m
}

// CheckoutCreator starts a hosted checkout. payments.Stripe satisfies it.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (string, error)
}

// Limiter is a per-key request budget. resilience.RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) bool
}

// CreateCheckoutSession validates the donation form and redirects the
// donor to the processor's hosted checkout.
func (h *PageHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	form := h.newForm(r.PostForm)
	form.Amount = r.PostFormValue("amount")
	form.Frequency = string(domain.ParseFrequency(r.PostFormValue("frequency")))
	form.Email = r.PostFormValue("email")

	cents, ok := money.ParseCents(form.Amount)
	if !ok {
		form.Error = "Please enter a dollar amount like 25 or 1,000.00."
		h.renderForm(w, http.StatusBadRequest, form)
		return
	}
	if cents > h.maxCents {
		form.Error = "Online donations are limited to " + form.MaxAmount + "."
		h.renderForm(w, http.StatusBadRequest, form)
		return
	}

	// Only requests that would reach the processor count against the budget.
	if h.limiter != nil && h.rateLimit > 0 {
		if !h.limiter.Allow(r.Context(), "checkout:"+clientIP(r), h.rateLimit) {
			form.Error = "Too many attempts. Please wait a minute and try again."
			h.renderForm(w, http.StatusTooManyRequests, form)
			return
		}
	}

	url, err := h.checkout.CreateCheckoutSession(r.Context(), domain.CheckoutRequest{
		AmountCents: cents,
		Frequency:   domain.Frequency(form.Frequency),
		Email:       form.Email,
		Metadata:    tagMetadata(form.Tags),
	})
	if err != nil {
		h.logger.Error("failed to create checkout session", "error", err, "amount_cents", cents)
		form.Error = "We couldn't start checkout. Please try again."
		h.renderForm(w, http.StatusBadGateway, form)
		return
	}

	h.logger.Info("checkout session created", "amount_cents", cents, "frequency", form.Frequency)
	http.Redirect(w, r, url, http.StatusSeeOther)
}
