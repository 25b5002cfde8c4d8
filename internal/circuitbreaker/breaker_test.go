package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := New(3)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	cb := New(3)
	failure := errors.New("payment API down")

	cb.RecordFailure(failure)
	cb.RecordFailure(failure)
	assert.Equal(t, StateClosed, cb.GetState(), "below threshold stays closed")

	cb.RecordFailure(failure)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrOpen)
	assert.Equal(t, "payment API down", cb.LastError())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(2)
	failure := errors.New("timeout")

	cb.RecordFailure(failure)
	cb.RecordSuccess()
	cb.RecordFailure(failure)
	assert.Equal(t, StateClosed, cb.GetState(), "non-consecutive failures must not trip")

	cb.RecordFailure(failure)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := New(1).WithResetDelay(10 * time.Millisecond).WithSuccessThreshold(2)

	cb.RecordFailure(errors.New("down"))
	require.Equal(t, StateOpen, cb.GetState())
	require.ErrorIs(t, cb.Allow(), ErrOpen)

	time.Sleep(20 * time.Millisecond)

	// After the cooldown a probe is allowed through.
	assert.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.GetState(), "needs two successes to close")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(1).WithResetDelay(10 * time.Millisecond)

	cb.RecordFailure(errors.New("down"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())
	require.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordFailure(errors.New("still down"))
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(1)
	cb.RecordFailure(errors.New("down"))
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_TripCallback(t *testing.T) {
	tripped := make(chan string, 1)
	cb := New(1).WithTripCallback(func(reason string) {
		tripped <- reason
	})

	cb.RecordFailure(errors.New("down"))

	select {
	case reason := <-tripped:
		assert.Contains(t, reason, "threshold")
	case <-time.After(time.Second):
		t.Fatal("trip callback was not invoked")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
