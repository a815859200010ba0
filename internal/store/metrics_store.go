package store

import (
	"context"
	"fmt"
)

// DonationTotals aggregates received donations by frequency.
type DonationTotals struct {
	Count        int   `json:"count"`
	TotalCents   int64 `json:"total_cents"`
	OneTimeCount int   `json:"one_time_count"`
	OneTimeCents int64 `json:"one_time_cents"`
	MonthlyCount int   `json:"monthly_count"`
	MonthlyCents int64 `json:"monthly_cents"`
	FailedCount  int   `json:"failed_count"`
}

// GetDonationTotals sums donation_received and donation_failed events.
func (s *PostgresStore) GetDonationTotals(ctx context.Context) (*DonationTotals, error) {
	var t DonationTotals

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE name = 'donation_received'),
			COALESCE(SUM(value) FILTER (WHERE name = 'donation_received'), 0)::BIGINT,
			COUNT(*) FILTER (WHERE name = 'donation_received' AND properties->>'frequency' = 'one-time'),
			COALESCE(SUM(value) FILTER (WHERE name = 'donation_received' AND properties->>'frequency' = 'one-time'), 0)::BIGINT,
			COUNT(*) FILTER (WHERE name = 'donation_received' AND properties->>'frequency' = 'monthly'),
			COALESCE(SUM(value) FILTER (WHERE name = 'donation_received' AND properties->>'frequency' = 'monthly'), 0)::BIGINT,
			COUNT(*) FILTER (WHERE name = 'donation_failed')
		FROM analytics_events
	`).Scan(
		&t.Count, &t.TotalCents,
		&t.OneTimeCount, &t.OneTimeCents,
		&t.MonthlyCount, &t.MonthlyCents,
		&t.FailedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("querying donation totals: %w", err)
	}

	return &t, nil
}
