package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79/webhook"
)

type eventEnvelope struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    eventData `json:"data"`
}

type eventData struct {
	Object map[string]string `json:"object"`
}

// buildEvent makes a minimal event. Handlers re-fetch the object by ID, so
// the envelope needs nothing else.
func buildEvent(eventType, objectID string) ([]byte, error) {
	return json.Marshal(eventEnvelope{
		ID:      "evt_replay_" + uuid.NewString(),
		Object:  "event",
		Type:    eventType,
		Created: time.Now().Unix(),
		Data:    eventData{Object: map[string]string{"id": objectID}},
	})
}

func signatureHeader(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	}).Header
}

type deliveryResult struct {
	StatusCode int
	Body       string
}

func deliver(ctx context.Context, url string, payload []byte, secret string, timeout time.Duration) (*deliveryResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signatureHeader(payload, secret))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting event: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &deliveryResult{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}, nil
}
