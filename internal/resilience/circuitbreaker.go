// Package resilience holds Redis-backed guards shared across instances:
// a circuit breaker for outbound providers and a sliding-window rate limiter.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker trips per outbound dependency (e.g. "email") after
// repeated failures so callers fail fast while the provider is down.
// State lives in a Redis hash so every instance sees the same circuit.
//
//	closed -> open after failureThreshold consecutive failures
//	open -> half-open once cooldown has elapsed since the last failure
//	half-open -> closed on success, open on failure
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
	now              func() time.Time
}

// CircuitBreakerState is the externally visible state of one circuit.
type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: 5,
		cooldownPeriod:   30 * time.Second,
		now:              time.Now,
	}
}

func cbKey(dependency string) string {
	return fmt.Sprintf("cb:%s", dependency)
}

// AllowRequest reports the circuit state and whether a call may proceed.
// Redis errors fail open.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, dependency string) (string, bool) {
	key := cbKey(dependency)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		cb.logger.Error("circuit breaker read failed", "error", err, "dependency", dependency)
		return StateClosed, true
	}
	if len(data) == 0 {
		return StateClosed, true
	}

	switch data["state"] {
	case StateOpen:
		if !cb.cooledDown(data["last_failed_at"]) {
			return StateOpen, false
		}
		if err := cb.redisClient.HSet(ctx, key, "state", StateHalfOpen).Err(); err != nil {
			cb.logger.Error("circuit breaker write failed", "error", err, "dependency", dependency)
		}
		cb.logger.Info("circuit breaker half-open", "dependency", dependency)
		return StateHalfOpen, true
	case StateHalfOpen:
		return StateHalfOpen, true
	default:
		return StateClosed, true
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, dependency string) {
	key := cbKey(dependency)

	prev, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	if err := cb.redisClient.HSet(ctx, key, "state", StateClosed, "failures", 0).Err(); err != nil {
		cb.logger.Error("circuit breaker write failed", "error", err, "dependency", dependency)
		return
	}

	if prev == StateHalfOpen || prev == StateOpen {
		cb.logger.Info("circuit breaker closed (recovered)", "dependency", dependency)
	}
}

// RecordFailure counts a failure and opens the circuit at the threshold or
// when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, dependency string) {
	key := cbKey(dependency)

	pipe := cb.redisClient.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, "failures", 1)
	pipe.HSet(ctx, key, "last_failed_at", cb.now().Unix())
	state := pipe.HGet(ctx, key, "state")
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		cb.logger.Error("failed to record circuit breaker failure", "error", err, "dependency", dependency)
		return
	}

	failures := incr.Val()
	switch {
	case state.Val() == StateHalfOpen:
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker re-opened (half-open probe failed)", "dependency", dependency)
	case failures >= int64(cb.failureThreshold) && state.Val() != StateOpen:
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker opened",
			"dependency", dependency,
			"failures", failures,
			"threshold", cb.failureThreshold,
		)
	case state.Val() == "":
		cb.redisClient.HSet(ctx, key, "state", StateClosed)
	}
}

// GetState returns the circuit state for display. An open circuit past its
// cooldown is reported as half-open.
func (cb *CircuitBreaker) GetState(ctx context.Context, dependency string) CircuitBreakerState {
	data, err := cb.redisClient.HGetAll(ctx, cbKey(dependency)).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: StateClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}
	if state == StateOpen && cb.cooledDown(data["last_failed_at"]) {
		state = StateHalfOpen
	}

	result := CircuitBreakerState{State: state, Failures: failures}
	if lastFailed, _ := strconv.ParseInt(data["last_failed_at"], 10, 64); lastFailed > 0 {
		result.LastFailedAt = time.Unix(lastFailed, 0).UTC().Format(time.RFC3339)
	}
	return result
}

func (cb *CircuitBreaker) cooledDown(lastFailedAt string) bool {
	ts, _ := strconv.ParseInt(lastFailedAt, 10, 64)
	return cb.now().Unix()-ts >= int64(cb.cooldownPeriod.Seconds())
}
