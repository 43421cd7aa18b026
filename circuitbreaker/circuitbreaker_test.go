package circuitbreaker

import (
	"testing"
	"time"
)

func newTestBreaker(threshold int, cooldown, halfOpenTimeout time.Duration) *CircuitBreaker {
	return New(Config{
		Name:            "test",
		Threshold:       threshold,
		Cooldown:        cooldown,
		HalfOpenTimeout: halfOpenTimeout,
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF-OPEN"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}

func TestDefaults(t *testing.T) {
	cb := New(Config{})
	if cb.Threshold() != 5 {
		t.Errorf("default threshold = %d, want 5", cb.Threshold())
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want CLOSED", cb.State())
	}
}

func TestOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, time.Second)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("opened after %d failures, threshold is 3", i+1)
		}
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatal("expected OPEN after reaching threshold")
	}
	if cb.Allow() {
		t.Error("open circuit must block requests")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	if cb.Failures() != 0 {
		t.Errorf("failures = %d after success, want 0", cb.Failures())
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Error("non-consecutive failures must not open the circuit")
	}
}

func TestHalfOpenAfterCooldown(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond, time.Second)

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatal("expected OPEN")
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("expected the test request to be allowed after cooldown")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want HALF-OPEN", cb.State())
	}
	// Only one test request at a time.
	if cb.Allow() {
		t.Error("second request during HALF-OPEN must be blocked")
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond, time.Second)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow() // transitions to half-open

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("state = %v after successful test request, want CLOSED", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("failures = %d, want 0", cb.Failures())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond, time.Second)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow() // half-open

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("state = %v after failed test request, want OPEN", cb.State())
	}
}

func TestHalfOpenTimeoutReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow() // half-open

	time.Sleep(20 * time.Millisecond)
	if cb.Allow() {
		t.Error("expected block after half-open timeout expired")
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want OPEN after half-open timeout", cb.State())
	}
}

func TestReset(t *testing.T) {
	cb := newTestBreaker(1, time.Minute, time.Second)

	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatal("expected OPEN")
	}

	cb.Reset()
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("after reset: state=%v failures=%d", cb.State(), cb.Failures())
	}
	if !cb.Allow() {
		t.Error("reset circuit must allow requests")
	}
}

func TestTimeUntilRetry(t *testing.T) {
	cb := newTestBreaker(1, time.Minute, time.Second)

	if cb.TimeUntilRetry() != 0 {
		t.Error("closed circuit should report zero retry delay")
	}

	cb.RecordFailure()
	remaining := cb.TimeUntilRetry()
	if remaining <= 0 || remaining > time.Minute {
		t.Errorf("TimeUntilRetry = %v, want (0, 1m]", remaining)
	}
}
