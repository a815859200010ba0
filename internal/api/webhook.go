package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Priya8975/donate/internal/webhook"
)

const maxWebhookBody = 1 << 20

// Dispatcher handles one signed processor event. webhook.Dispatcher
// satisfies it.
type Dispatcher interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) webhook.Outcome
}

type WebhookHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewWebhookHandler(d Dispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: d, logger: logger}
}

type webhookResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
	Note    string `json:"note,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Receive reads the raw body, which signature verification needs
// byte-for-byte, and answers with the outcome's status code.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	out := h.dispatcher.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))

	respondJSON(w, out.HTTPStatus(), webhookResponse{
		Status:  out.Status.String(),
		EventID: out.EventID,
		Note:    out.Note,
		Error:   publicError(out.Err),
	})
}

// publicError keeps provider detail out of the response body.
func publicError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, webhook.ErrInvalidSignature):
		return webhook.ErrInvalidSignature.Error()
	case errors.Is(err, webhook.ErrInvalidPayload):
		return webhook.ErrInvalidPayload.Error()
	case errors.Is(err, webhook.ErrEmailDeliveryFailed):
		return webhook.ErrEmailDeliveryFailed.Error()
	case errors.Is(err, webhook.ErrProcessor):
		return webhook.ErrProcessor.Error()
	default:
		return "internal error"
	}
}
