package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(5, 2, time.Minute)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.CanAttempt())

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.CanAttempt())
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(5, 2, time.Minute)

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}
	cb.RecordSuccess()
	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 5*time.Millisecond)

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())

	// After the cooldown the next attempt probes half-open.
	time.Sleep(10 * time.Millisecond)
	assert.True(t, cb.CanAttempt())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.GetState())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 5*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	assert.True(t, cb.CanAttempt())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.CanAttempt())
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(5, 2, time.Minute)
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.CanAttempt())
}

func TestGetStateName(t *testing.T) {
	cb := NewCircuitBreaker(5, 2, time.Minute)
	assert.Equal(t, "closed", cb.GetStateName())

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, "open", cb.GetStateName())
}
