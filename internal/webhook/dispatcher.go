// Package webhook verifies signed payment processor events and runs the
// receipt and failure-notice handlers for the event kinds the app cares
// about.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/donate/internal/analytics"
	"github.com/Priya8975/donate/internal/domain"
	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
)

// Processor re-fetches authoritative objects. payments.Stripe satisfies it.
type Processor interface {
	CheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	Invoice(ctx context.Context, id string) (*domain.Invoice, error)
	CancelSubscription(ctx context.Context, id string) error
}

// Mailer sends donor emails. email.Mailer satisfies it.
type Mailer interface {
	SendReceipt(ctx context.Context, rec domain.DonationRecord) error
	SendPaymentFailed(ctx context.Context, rec domain.DonationRecord) error
}

type Options struct {
	Secret    string
	Tolerance time.Duration

	// Objects whose metadata[MarkerKey] names another integration are
	// skipped.
	IntegrationName string
	MarkerKey       string

	// Claims defaults to a MemoryClaimStore.
	Claims     ClaimStore
	ClaimLease time.Duration
	ClaimTTL   time.Duration

	// Tracker is optional.
	Tracker analytics.Tracker
}

// Dispatcher handles one webhook delivery at a time, synchronously, in the
// caller's goroutine.
type Dispatcher struct {
	processor Processor
	mailer    Mailer
	tracker   analytics.Tracker
	claims    ClaimStore
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(processor Processor, mailer Mailer, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.Tolerance <= 0 {
		opts.Tolerance = stripewebhook.DefaultTolerance
	}
	if opts.MarkerKey == "" {
		opts.MarkerKey = "app"
	}
	if opts.ClaimLease <= 0 {
		opts.ClaimLease = 2 * time.Minute
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 72 * time.Hour
	}
	if opts.Claims == nil {
		opts.Claims = NewMemoryClaimStore()
	}

	return &Dispatcher{
		processor: processor,
		mailer:    mailer,
		tracker:   opts.Tracker,
		claims:    opts.Claims,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// eventRef is what handlers need from the verified envelope.
type eventRef struct {
	id       string
	objectID string
	created  time.Time
}

// Handle verifies payload against sigHeader and runs the handler for its
// event kind. It never panics on bad input and always returns an Outcome.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte, sigHeader string) Outcome {
	evt, err := d.verify(payload, sigHeader)
	if err != nil {
		d.logger.Warn("webhook rejected", "error", err)
		return Outcome{Status: StatusRejected, Err: err}
	}

	kind := ParseEventKind(string(evt.Type))
	out := Outcome{Kind: kind, EventID: evt.ID}
	log := d.logger.With("event_id", evt.ID, "event_type", string(evt.Type))

	switch kind {
	case KindCheckoutCompleted, KindInvoicePaid, KindInvoicePaymentFailed:
	default:
		log.Debug("webhook event type not handled")
		out.Status = StatusUnhandled
		return out
	}

	ref := eventRef{id: evt.ID, objectID: dataObjectID(evt), created: d.now()}
	if ref.objectID == "" {
		out.Status = StatusRejected
		out.Err = fmt.Errorf("%w: event %s has no data object id", ErrInvalidPayload, evt.ID)
		log.Warn("webhook rejected", "error", out.Err)
		return out
	}
	if evt.Created > 0 {
		ref.created = time.Unix(evt.Created, 0).UTC()
	}

	claimKey := "stripe:event:" + evt.ID
	token, claimed, err := d.claims.Claim(ctx, claimKey, d.opts.ClaimLease)
	switch {
	case err != nil:
		// Fall back to the handler guards alone.
		log.Error("claim failed", "error", err)
	case !claimed:
		log.Info("webhook event already claimed")
		out.Status = StatusHandled
		out.Note = "duplicate"
		return out
	}

	start := time.Now()
	note, err := d.dispatch(ctx, kind, ref)
	if err != nil {
		if claimed {
			if rerr := d.claims.Release(ctx, claimKey, token); rerr != nil {
				log.Error("claim release failed", "error", rerr)
			}
		}
		log.Error("webhook handler failed",
			"kind", kind.String(),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	if claimed {
		if cerr := d.claims.Complete(ctx, claimKey, token, d.opts.ClaimTTL); cerr != nil {
			log.Error("claim complete failed", "error", cerr)
		}
	}

	log.Info("webhook handled",
		"kind", kind.String(),
		"note", note,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	out.Status = StatusHandled
	out.Note = note
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, kind EventKind, ref eventRef) (string, error) {
	switch kind {
	case KindCheckoutCompleted:
		return d.handleCheckoutCompleted(ctx, ref)
	case KindInvoicePaid:
		return d.handleInvoicePaid(ctx, ref)
	case KindInvoicePaymentFailed:
		return d.handleInvoicePaymentFailed(ctx, ref)
	default:
		return "", fmt.Errorf("no handler for %s", kind)
	}
}

func (d *Dispatcher) verify(payload []byte, sigHeader string) (stripe.Event, error) {
	var evt stripe.Event

	if err := stripewebhook.ValidatePayloadWithTolerance(payload, sigHeader, d.opts.Secret, d.opts.Tolerance); err != nil {
		return evt, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if err := json.Unmarshal(payload, &evt); err != nil {
		return evt, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return evt, fmt.Errorf("%w: event id and type are required", ErrInvalidPayload)
	}
	return evt, nil
}

func dataObjectID(evt stripe.Event) string {
	if evt.Data == nil || evt.Data.Object == nil {
		return ""
	}
	id, _ := evt.Data.Object["id"].(string)
	return id
}
