package webhook

import (
	"context"
	"fmt"

	"github.com/Priya8975/donate/internal/domain"
	"github.com/Priya8975/donate/internal/email"
)

// Handler notes, reported in Outcome.Note and the logs.
const (
	noteReceiptSent    = "receipt sent"
	noteFailureSent    = "failure notice sent"
	noteOtherApp       = "owned by another integration"
	noteSubscription   = "subscription checkout"
	noteUnpaid         = "not paid"
	noteZeroAmount     = "zero amount"
	noteNoSubscription = "no subscription"
	noteCanceled       = "subscription already canceled"
)

func (d *Dispatcher) handleCheckoutCompleted(ctx context.Context, ref eventRef) (string, error) {
	sess, err := d.processor.CheckoutSession(ctx, ref.objectID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProcessor, err)
	}

	if d.ownedElsewhere(sess.Metadata) {
		return noteOtherApp, nil
	}
	// Monthly receipts come from invoice.payment_succeeded.
	if sess.Mode == domain.SessionModeSubscription {
		return noteSubscription, nil
	}
	if sess.PaymentStatus != domain.SessionPaymentStatusPaid {
		return noteUnpaid, nil
	}

	rec := domain.DonationRecord{
		AmountCents:   sess.AmountTotal,
		Email:         sess.Email,
		Name:          sess.Name,
		Frequency:     domain.FrequencyOneTime,
		PaymentMethod: email.DescribePaymentMethod(sess.PaymentMethod),
		ExternalID:    firstNonEmpty(sess.ChargeID, sess.ID),
		OccurredAt:    ref.created,
	}
	if err := d.mailer.SendReceipt(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmailDeliveryFailed, err)
	}

	d.track(ctx, domain.EventDonationReceived, rec, ref.id)
	return noteReceiptSent, nil
}

func (d *Dispatcher) handleInvoicePaid(ctx context.Context, ref eventRef) (string, error) {
	inv, err := d.processor.Invoice(ctx, ref.objectID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProcessor, err)
	}

	if d.invoiceOwnedElsewhere(inv) {
		return noteOtherApp, nil
	}
	if inv.AmountPaid <= 0 {
		return noteZeroAmount, nil
	}

	rec := invoiceRecord(inv, inv.AmountPaid, ref)
	if err := d.mailer.SendReceipt(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmailDeliveryFailed, err)
	}

	d.track(ctx, domain.EventDonationReceived, rec, ref.id)
	return noteReceiptSent, nil
}

// handleInvoicePaymentFailed notifies the donor of a failed renewal and
// cancels the subscription so the processor stops retrying the charge.
// First-payment failures are shown to the donor in checkout and get no
// email.
func (d *Dispatcher) handleInvoicePaymentFailed(ctx context.Context, ref eventRef) (string, error) {
	inv, err := d.processor.Invoice(ctx, ref.objectID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProcessor, err)
	}

	if d.invoiceOwnedElsewhere(inv) {
		return noteOtherApp, nil
	}
	if inv.BillingReason != domain.BillingReasonSubscriptionCycle {
		return "billing reason " + inv.BillingReason, nil
	}
	sub := inv.Subscription
	if sub == nil || sub.ID == "" {
		return noteNoSubscription, nil
	}
	if sub.Status == domain.SubscriptionStatusCanceled {
		return noteCanceled, nil
	}

	rec := invoiceRecord(inv, inv.AmountDue, ref)
	if err := d.mailer.SendPaymentFailed(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmailDeliveryFailed, err)
	}
	if err := d.processor.CancelSubscription(ctx, sub.ID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProcessor, err)
	}

	d.track(ctx, domain.EventDonationFailed, rec, ref.id)
	return noteFailureSent, nil
}

// ownedElsewhere reports whether metadata carries the migration marker for
// a different integration. Objects without the marker belong to us.
func (d *Dispatcher) ownedElsewhere(metadata map[string]string) bool {
	owner, ok := metadata[d.opts.MarkerKey]
	return ok && owner != d.opts.IntegrationName
}

func (d *Dispatcher) invoiceOwnedElsewhere(inv *domain.Invoice) bool {
	if d.ownedElsewhere(inv.Metadata) {
		return true
	}
	return inv.Subscription != nil && d.ownedElsewhere(inv.Subscription.Metadata)
}

func (d *Dispatcher) track(ctx context.Context, name string, rec domain.DonationRecord, eventID string) {
	if d.tracker == nil {
		return
	}

	event := domain.AnalyticsEvent{
		Name: name,
		Properties: map[string]string{
			"frequency":      string(rec.Frequency),
			"email":          rec.Email,
			"name":           rec.Name,
			"payment_method": rec.PaymentMethod,
			"external_id":    rec.ExternalID,
			"event_id":       eventID,
		},
		Value:      rec.AmountCents,
		OccurredAt: rec.OccurredAt,
	}
	if err := d.tracker.Track(ctx, event); err != nil {
		d.logger.Warn("analytics tracking failed", "event", name, "event_id", eventID, "error", err)
	}
}

func invoiceRecord(inv *domain.Invoice, amount int64, ref eventRef) domain.DonationRecord {
	var subID string
	if inv.Subscription != nil {
		subID = inv.Subscription.ID
	}
	external := firstNonEmpty(inv.ChargeID, subID, inv.ID)
	return domain.DonationRecord{
		AmountCents:   amount,
		Email:         inv.Email,
		Name:          inv.Name,
		Frequency:     domain.FrequencyMonthly,
		PaymentMethod: email.DescribePaymentMethod(inv.PaymentMethod),
		ExternalID:    external,
		OccurredAt:    ref.created,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
