// Package email sends donor receipts and payment-failure notices through
// SendGrid dynamic templates.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/donate/internal/domain"
	"github.com/Priya8975/donate/internal/money"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const breakerDependency = "email"

// ErrCircuitOpen is returned without contacting SendGrid while the email
// circuit is open.
var ErrCircuitOpen = errors.New("email circuit open")

// Sender is the part of the SendGrid client the mailer uses.
type Sender interface {
	SendWithContext(ctx context.Context, m *mail.SGMailV3) (*rest.Response, error)
}

// Breaker guards the provider call. resilience.CircuitBreaker satisfies it.
type Breaker interface {
	AllowRequest(ctx context.Context, dependency string) (string, bool)
	RecordSuccess(ctx context.Context, dependency string)
	RecordFailure(ctx context.Context, dependency string)
}

type Config struct {
	FromEmail         string
	FromName          string
	ReceiptTemplateID string
	FailureTemplateID string
}

type Mailer struct {
	sender  Sender
	cfg     Config
	breaker Breaker
	logger  *slog.Logger
}

func NewMailer(sender Sender, cfg Config, logger *slog.Logger) *Mailer {
	return &Mailer{sender: sender, cfg: cfg, logger: logger}
}

// WithBreaker routes every send through b.
func (m *Mailer) WithBreaker(b Breaker) *Mailer {
	m.breaker = b
	return m
}

// SendReceipt emails the donor a receipt for a completed donation.
func (m *Mailer) SendReceipt(ctx context.Context, rec domain.DonationRecord) error {
	return m.send(ctx, m.cfg.ReceiptTemplateID, rec)
}

// SendPaymentFailed tells a monthly donor their renewal payment failed.
func (m *Mailer) SendPaymentFailed(ctx context.Context, rec domain.DonationRecord) error {
	return m.send(ctx, m.cfg.FailureTemplateID, rec)
}

func (m *Mailer) send(ctx context.Context, templateID string, rec domain.DonationRecord) error {
	if rec.Email == "" {
		return errors.New("donation has no email address")
	}

	if m.breaker != nil {
		if state, ok := m.breaker.AllowRequest(ctx, breakerDependency); !ok {
			m.logger.Warn("email skipped, circuit open", "state", state, "external_id", rec.ExternalID)
			return ErrCircuitOpen
		}
	}

	msg := m.buildMessage(templateID, rec)

	start := time.Now()
	resp, err := m.sender.SendWithContext(ctx, msg)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		err = fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	if err != nil {
		m.recordFailure(ctx)
		return fmt.Errorf("sending template %s: %w", templateID, err)
	}
	m.recordSuccess(ctx)

	m.logger.Info("email sent",
		"template_id", templateID,
		"external_id", rec.ExternalID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (m *Mailer) buildMessage(templateID string, rec domain.DonationRecord) *mail.SGMailV3 {
	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(m.cfg.FromName, m.cfg.FromEmail))
	msg.SetTemplateID(templateID)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(DisplayName(rec.Name), rec.Email))
	for k, v := range templateData(rec) {
		p.SetDynamicTemplateData(k, v)
	}
	msg.AddPersonalizations(p)
	return msg
}

func templateData(rec domain.DonationRecord) map[string]interface{} {
	return map[string]interface{}{
		"amount":         money.FormatDollars(rec.AmountCents),
		"frequency":      string(rec.Frequency),
		"payment_method": rec.PaymentMethod,
		"donor_name":     rec.Name,
		"transaction_id": rec.ExternalID,
		"date":           rec.OccurredAt.UTC().Format("January 2, 2006"),
	}
}

func (m *Mailer) recordFailure(ctx context.Context) {
	if m.breaker != nil {
		m.breaker.RecordFailure(ctx, breakerDependency)
	}
}

func (m *Mailer) recordSuccess(ctx context.Context) {
	if m.breaker != nil {
		m.breaker.RecordSuccess(ctx, breakerDependency)
	}
}
