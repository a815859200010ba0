package domain

// Processor object snapshots. Only the fields the webhook handlers read
// are carried over from the payment SDK.

// Checkout session modes and payment states.
const (
	SessionModePayment      = "payment"
	SessionModeSubscription = "subscription"

	SessionPaymentStatusPaid = "paid"
)

// BillingReasonSubscriptionCycle marks an invoice for a renewal charge.
const BillingReasonSubscriptionCycle = "subscription_cycle"

// SubscriptionStatusCanceled is the terminal subscription state.
const SubscriptionStatusCanceled = "canceled"

type CheckoutSession struct {
	ID            string
	Mode          string
	PaymentStatus string
	AmountTotal   int64
	Email         string
	Name          string
	Metadata      map[string]string
	ChargeID      string
	PaymentMethod *PaymentMethodDetails
}

type Invoice struct {
	ID            string
	BillingReason string
	AmountPaid    int64
	AmountDue     int64
	Email         string
	Name          string
	Metadata      map[string]string
	ChargeID      string
	PaymentMethod *PaymentMethodDetails
	Subscription  *Subscription
}

type Subscription struct {
	ID       string
	Status   string
	Metadata map[string]string
}

// PaymentMethodDetails describes how a charge was paid. Card fields are
// empty for non-card methods.
type PaymentMethodDetails struct {
	Type        string
	CardBrand   string
	CardFunding string
	WalletType  string
}
