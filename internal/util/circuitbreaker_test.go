package util

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, zap.NewNop())

	for i := 0; i < 2; i++ {
		cb.RecordFailure(0)
		if !cb.CanExecute() {
			t.Fatalf("circuit opened after %d failures, threshold is 3", i+1)
		}
	}

	cb.RecordFailure(0)
	if cb.CanExecute() {
		t.Error("circuit still closed after hitting the threshold")
	}
	if cb.Status().State != CircuitStateOpen {
		t.Errorf("state = %s, want OPEN", cb.Status().State)
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Nanosecond, zap.NewNop())
	cb.RecordFailure(0)

	time.Sleep(time.Millisecond)
	if !cb.CanExecute() {
		t.Fatal("circuit did not allow a probe after the reset timeout")
	}
	if cb.Status().State != CircuitStateHalfOpen {
		t.Errorf("state = %s, want HALF_OPEN", cb.Status().State)
	}

	cb.RecordSuccess()
	if cb.Status().State != CircuitStateClosed {
		t.Errorf("state after success = %s, want CLOSED", cb.Status().State)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Nanosecond, zap.NewNop())
	cb.RecordFailure(0)
	cb.RecordFailure(0)

	time.Sleep(time.Millisecond)
	if !cb.CanExecute() {
		t.Fatal("expected a half-open probe")
	}

	// A single half-open failure reopens regardless of the threshold.
	cb.RecordFailure(time.Hour)
	if cb.CanExecute() {
		t.Error("circuit closed after a failed probe")
	}
	status := cb.Status()
	if status.NextRetryTime == nil || time.Until(*status.NextRetryTime) < 50*time.Minute {
		t.Errorf("custom timeout not applied: %+v", status)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour, zap.NewNop())
	cb.RecordFailure(0)
	if cb.CanExecute() {
		t.Fatal("circuit should be open")
	}

	cb.Reset()
	if !cb.CanExecute() || cb.Status().FailureCount != 0 {
		t.Error("Reset did not restore the closed state")
	}
}
