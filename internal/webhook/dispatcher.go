package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Breaker defaults: five straight failures open the circuit, a minute of
// cooldown before a half-open probe, two probe successes to close.
const (
	breakerFailureThreshold = 5
	breakerSuccessThreshold = 2
	breakerCooldown         = 60 * time.Second
)

// Dispatcher handles webhook delivery with retry logic
type Dispatcher struct {
	httpClient     *http.Client
	circuitBreaker *CircuitBreaker
}

// NewDispatcher creates a new webhook dispatcher
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		circuitBreaker: NewCircuitBreaker(breakerFailureThreshold, breakerSuccessThreshold, breakerCooldown),
	}
}

// Send delivers a status notification to a webhook, retrying per the
// webhook's retry config. It always returns a NotificationLog recording
// every attempt, alongside the delivery error if all attempts failed.
func (d *Dispatcher) Send(
	ctx context.Context,
	jobID primitive.ObjectID,
	jobName string,
	webhook model.Webhook,
	payload NotificationPayload,
	transition string,
	correlationID string,
) (*model.NotificationLog, error) {
	payload.Metadata["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	log := &model.NotificationLog{
		ID:            primitive.NewObjectID(),
		JobID:         jobID,
		JobName:       jobName,
		CorrelationID: correlationID,
		WebhookURL:    webhook.URL,
		Transition:    transition,
		Message:       payload.Text,
		Attempts:      make([]model.NotificationAttempt, 0),
		FinalStatus:   "retrying",
		CreatedAt:     time.Now().UTC(),
	}

	if !d.circuitBreaker.CanAttempt() {
		slog.Warn("Circuit breaker is open, skipping webhook delivery",
			"correlation_id", correlationID,
			"webhook_url", webhook.URL,
			"circuit_state", d.circuitBreaker.GetStateName(),
		)
		log.FinalStatus = "failed"
		log.CompletedAt = time.Now().UTC()
		return log, fmt.Errorf("circuit breaker is open")
	}

	retryStrategy := NewRetryStrategy(webhook.RetryConfig)

	for attempt := 1; attempt <= retryStrategy.GetMaxAttempts(); attempt++ {
		slog.Info("Attempting webhook delivery",
			"correlation_id", correlationID,
			"webhook_url", webhook.URL,
			"attempt", attempt,
			"max_attempts", retryStrategy.GetMaxAttempts(),
		)

		result, err := d.deliver(ctx, webhook, payload)
		result.AttemptNumber = attempt
		log.Attempts = append(log.Attempts, result)

		if err == nil && result.StatusCode >= 200 && result.StatusCode < 300 {
			slog.Info("Webhook delivered successfully",
				"correlation_id", correlationID,
				"webhook_url", webhook.URL,
				"attempt", attempt,
				"status_code", result.StatusCode,
			)

			log.FinalStatus = "delivered"
			log.CompletedAt = time.Now().UTC()
			d.circuitBreaker.RecordSuccess()
			return log, nil
		}

		if !retryStrategy.ShouldRetry(attempt, result.StatusCode, err) {
			slog.Error("Webhook delivery failed, no retry",
				"correlation_id", correlationID,
				"webhook_url", webhook.URL,
				"attempt", attempt,
				"status_code", result.StatusCode,
				"error", result.Error,
			)

			log.FinalStatus = "failed"
			log.CompletedAt = time.Now().UTC()
			d.circuitBreaker.RecordFailure()
			return log, fmt.Errorf("webhook delivery failed after %d attempts", attempt)
		}

		if attempt < retryStrategy.GetMaxAttempts() {
			delay := retryStrategy.CalculateDelay(attempt)
			slog.Warn("Webhook delivery failed, retrying",
				"correlation_id", correlationID,
				"webhook_url", webhook.URL,
				"attempt", attempt,
				"next_retry_ms", delay.Milliseconds(),
				"error", result.Error,
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				log.FinalStatus = "failed"
				log.CompletedAt = time.Now().UTC()
				return log, ctx.Err()
			}
		}
	}

	slog.Error("Webhook delivery failed after all retries",
		"correlation_id", correlationID,
		"webhook_url", webhook.URL,
		"attempts", retryStrategy.GetMaxAttempts(),
	)

	log.FinalStatus = "failed"
	log.CompletedAt = time.Now().UTC()
	d.circuitBreaker.RecordFailure()
	return log, fmt.Errorf("webhook delivery failed after %d attempts", retryStrategy.GetMaxAttempts())
}

// deliver performs a single webhook delivery attempt
func (d *Dispatcher) deliver(
	ctx context.Context,
	webhook model.Webhook,
	payload NotificationPayload,
) (model.NotificationAttempt, error) {
	start := time.Now()
	attempt := model.NotificationAttempt{
		Timestamp: start.UTC(),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		attempt.Error = fmt.Sprintf("Failed to marshal payload: %v", err)
		attempt.DurationMs = time.Since(start).Milliseconds()
		return attempt, err
	}

	req, err := http.NewRequestWithContext(ctx, webhook.Method, webhook.URL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		attempt.Error = fmt.Sprintf("Failed to create request: %v", err)
		attempt.DurationMs = time.Since(start).Milliseconds()
		return attempt, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		attempt.Error = fmt.Sprintf("Request failed: %v", err)
		attempt.DurationMs = time.Since(start).Milliseconds()
		return attempt, err
	}
	defer resp.Body.Close()

	// Limit the captured response body to 1KB
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		slog.Warn("Failed to read webhook response body", "error", err)
	}

	attempt.StatusCode = resp.StatusCode
	attempt.ResponseBody = string(bodyBytes)
	attempt.DurationMs = time.Since(start).Milliseconds()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		attempt.Error = fmt.Sprintf("Webhook returned status %d", resp.StatusCode)
		return attempt, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return attempt, nil
}

// GetCircuitBreakerState returns the current circuit breaker state
func (d *Dispatcher) GetCircuitBreakerState() string {
	return d.circuitBreaker.GetStateName()
}
