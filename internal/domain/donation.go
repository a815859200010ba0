package domain

import "time"

// Frequency tags how often a donor gives.
type Frequency string

const (
	FrequencyOneTime Frequency = "one-time"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency maps form input onto a Frequency. Anything other than
// "monthly" is a one-time gift.
func ParseFrequency(s string) Frequency {
	if Frequency(s) == FrequencyMonthly {
		return FrequencyMonthly
	}
	return FrequencyOneTime
}

// DonationRecord is built from an authoritative processor object to drive
// one email and one analytics event. It is never persisted as-is.
type DonationRecord struct {
	AmountCents   int64     `json:"amount_cents"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Frequency     Frequency `json:"frequency"`
	PaymentMethod string    `json:"payment_method"`
	ExternalID    string    `json:"external_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CheckoutRequest is what the donation form asks the processor for.
// Metadata holds campaign tags copied onto the session.
type CheckoutRequest struct {
	AmountCents int64
	Frequency   Frequency
	Email       string
	Metadata    map[string]string
}
