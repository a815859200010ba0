package webhook

import "errors"

var (
	// ErrInvalidSignature: header missing, malformed, mismatched, or outside
	// the tolerance window. Terminal.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidPayload: the signed body is not a usable event. Terminal.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrEmailDeliveryFailed is recovered by processor redelivery.
	ErrEmailDeliveryFailed = errors.New("email delivery failed")

	// ErrProcessor means re-fetching or canceling at the processor failed.
	// Recovered by redelivery like an email failure.
	ErrProcessor = errors.New("payment processor request failed")
)
