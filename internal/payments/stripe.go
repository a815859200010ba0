// Package payments adapts the Stripe SDK to the donation domain.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Priya8975/donate/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// Stripe fetches and mutates processor objects for the webhook handlers and
// creates checkout sessions for the donation form.
type Stripe struct {
	api        *client.API
	baseURL    string
	markerKey  string
	markerName string
}

// NewStripe builds a Stripe adapter. Sessions it creates are stamped with
// markerKey=markerName so later webhooks can tell who owns them.
func NewStripe(secretKey, baseURL, markerKey, markerName string) *Stripe {
	return &Stripe{
		api:        client.New(secretKey, nil),
		baseURL:    strings.TrimRight(baseURL, "/"),
		markerKey:  markerKey,
		markerName: markerName,
	}
}

// CheckoutSession retrieves a session with its latest charge expanded.
func (s *Stripe) CheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent.latest_charge")

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving checkout session %s: %w", id, err)
	}
	return sessionFromStripe(sess), nil
}

// Invoice retrieves an invoice with its charge and subscription expanded.
func (s *Stripe) Invoice(ctx context.Context, id string) (*domain.Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	params.AddExpand("charge")
	params.AddExpand("subscription")

	inv, err := s.api.Invoices.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving invoice %s: %w", id, err)
	}
	return invoiceFromStripe(inv), nil
}

// CancelSubscription cancels a subscription immediately.
func (s *Stripe) CancelSubscription(ctx context.Context, id string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := s.api.Subscriptions.Cancel(id, params); err != nil {
		return fmt.Errorf("canceling subscription %s: %w", id, err)
	}
	return nil
}

// CreateCheckoutSession starts a hosted checkout and returns its URL.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	if req.AmountCents <= 0 {
		return "", errors.New("amount must be positive")
	}

	params := s.checkoutParams(req)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *Stripe) checkoutParams(req domain.CheckoutRequest) *stripe.CheckoutSessionParams {
	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		if k != s.markerKey {
			metadata[k] = v
		}
	}
	metadata[s.markerKey] = s.markerName

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		UnitAmount: stripe.Int64(req.AmountCents),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String("Donation"),
		},
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(s.baseURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/cancel"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{PriceData: priceData, Quantity: stripe.Int64(1)},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	if req.Frequency == domain.FrequencyMonthly {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: metadata}
		return params
	}

	params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
	params.SubmitType = stripe.String(string(stripe.CheckoutSessionSubmitTypeDonate))
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: metadata}
	return params
}

func sessionFromStripe(sess *stripe.CheckoutSession) *domain.CheckoutSession {
	out := &domain.CheckoutSession{
		ID:            sess.ID,
		Mode:          string(sess.Mode),
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Email:         sess.CustomerEmail,
		Metadata:      sess.Metadata,
	}
	if d := sess.CustomerDetails; d != nil {
		if d.Email != "" {
			out.Email = d.Email
		}
		out.Name = d.Name
	}
	if pi := sess.PaymentIntent; pi != nil && pi.LatestCharge != nil {
		out.ChargeID = pi.LatestCharge.ID
		out.PaymentMethod = paymentMethodFromCharge(pi.LatestCharge)
		if out.Name == "" && pi.LatestCharge.BillingDetails != nil {
			out.Name = pi.LatestCharge.BillingDetails.Name
		}
	}
	return out
}

func invoiceFromStripe(inv *stripe.Invoice) *domain.Invoice {
	out := &domain.Invoice{
		ID:            inv.ID,
		BillingReason: string(inv.BillingReason),
		AmountPaid:    inv.AmountPaid,
		AmountDue:     inv.AmountDue,
		Email:         inv.CustomerEmail,
		Name:          inv.CustomerName,
		Metadata:      inv.Metadata,
	}
	if ch := inv.Charge; ch != nil {
		out.ChargeID = ch.ID
		out.PaymentMethod = paymentMethodFromCharge(ch)
	}
	if sub := inv.Subscription; sub != nil {
		out.Subscription = &domain.Subscription{
			ID:       sub.ID,
			Status:   string(sub.Status),
			Metadata: sub.Metadata,
		}
	}
	return out
}

func paymentMethodFromCharge(ch *stripe.Charge) *domain.PaymentMethodDetails {
	details := ch.PaymentMethodDetails
	if details == nil {
		return nil
	}

	out := &domain.PaymentMethodDetails{Type: string(details.Type)}
	if card := details.Card; card != nil {
		out.CardBrand = string(card.Brand)
		out.CardFunding = string(card.Funding)
		if card.Wallet != nil {
			out.WalletType = string(card.Wallet.Type)
		}
	}
	return out
}
