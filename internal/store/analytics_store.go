package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Priya8975/donate/internal/domain"
)

// Track records an analytics event. It satisfies analytics.Tracker.
func (s *PostgresStore) Track(ctx context.Context, event domain.AnalyticsEvent) error {
	props := event.Properties
	if props == nil {
		props = map[string]string{}
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO analytics_events (name, properties, value, occurred_at)
		VALUES ($1, $2, $3, $4)
	`, event.Name, props, event.Value, occurredAt)
	if err != nil {
		return fmt.Errorf("inserting analytics event: %w", err)
	}
	return nil
}

// ListAnalyticsEvents returns the most recent events, optionally filtered by name.
func (s *PostgresStore) ListAnalyticsEvents(ctx context.Context, name string, limit int) ([]domain.AnalyticsEvent, error) {
	query := `SELECT id, name, properties, value, occurred_at FROM analytics_events`
	args := []interface{}{}
	argIdx := 1

	if name != "" {
		query += fmt.Sprintf(" WHERE name = $%d", argIdx)
		args = append(args, name)
		argIdx++
	}

	query += " ORDER BY occurred_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying analytics events: %w", err)
	}
	defer rows.Close()

	events := []domain.AnalyticsEvent{}
	for rows.Next() {
		var e domain.AnalyticsEvent
		if err := rows.Scan(&e.ID, &e.Name, &e.Properties, &e.Value, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning analytics event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analytics events: %w", err)
	}

	return events, nil
}
