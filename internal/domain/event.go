package domain

import (
	"time"
)

// AnalyticsEvent is a named tracking record with string properties and a
// single numeric measurement. Value is in cents for money events.
type AnalyticsEvent struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
	Value      int64             `json:"value"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Analytics event names.
const (
	EventDonationReceived = "donation_received"
	EventDonationFailed   = "donation_failed"
)
