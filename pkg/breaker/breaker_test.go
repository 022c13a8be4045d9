package breaker

import (
	"testing"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 2, HalfOpenMax: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		b.RecordFailure("10.0.0.1")

		if b.State("10.0.0.1") != models.CircuitClosed {
			t.Fatalf("state after %d failures = %v, want Closed", i+1, b.State("10.0.0.1"))
		}
	}

	b.RecordFailure("10.0.0.1")

	if b.State("10.0.0.1") != models.CircuitOpen {
		t.Fatalf("state after 3rd failure = %v, want Open", b.State("10.0.0.1"))
	}

	if b.ShouldAttempt("10.0.0.1") {
		t.Error("ShouldAttempt while Open and within cooldown = true, want false")
	}
}

func TestBreakerHalfOpenTransitionAndClose(t *testing.T) {
	now := time.Now()
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, HalfOpenMax: 5, OpenTimeout: time.Second})
	b.now = func() time.Time { return now }

	b.RecordFailure("10.0.0.2") // opens

	b.now = func() time.Time { return now.Add(2 * time.Second) }

	if !b.ShouldAttempt("10.0.0.2") {
		t.Fatal("ShouldAttempt after cooldown elapsed = false, want true (HalfOpen)")
	}

	if b.State("10.0.0.2") != models.CircuitHalfOpen {
		t.Fatalf("state = %v, want HalfOpen", b.State("10.0.0.2"))
	}

	b.RecordSuccess("10.0.0.2")

	if b.State("10.0.0.2") != models.CircuitHalfOpen {
		t.Fatalf("state after 1 success = %v, want still HalfOpen", b.State("10.0.0.2"))
	}

	b.RecordSuccess("10.0.0.2")

	if b.State("10.0.0.2") != models.CircuitClosed {
		t.Fatalf("state after 2nd success = %v, want Closed", b.State("10.0.0.2"))
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, HalfOpenMax: 5, OpenTimeout: time.Second})
	b.now = func() time.Time { return now }

	b.RecordFailure("10.0.0.3")

	b.now = func() time.Time { return now.Add(2 * time.Second) }
	b.ShouldAttempt("10.0.0.3") // transitions to HalfOpen

	b.RecordFailure("10.0.0.3")

	if b.State("10.0.0.3") != models.CircuitOpen {
		t.Fatalf("state after HalfOpen failure = %v, want Open", b.State("10.0.0.3"))
	}
}

func TestBreakerHalfOpenCapsAttempts(t *testing.T) {
	now := time.Now()
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 10, HalfOpenMax: 2, OpenTimeout: time.Second})
	b.now = func() time.Time { return now }

	b.RecordFailure("10.0.0.4")

	b.now = func() time.Time { return now.Add(2 * time.Second) }

	if !b.ShouldAttempt("10.0.0.4") {
		t.Fatal("first HalfOpen attempt should be admitted")
	}

	b.RecordSuccess("10.0.0.4")

	if !b.ShouldAttempt("10.0.0.4") {
		t.Fatal("second HalfOpen attempt should be admitted")
	}

	b.RecordSuccess("10.0.0.4")

	if b.ShouldAttempt("10.0.0.4") {
		t.Error("third HalfOpen attempt should be refused (exceeds HalfOpenMax)")
	}
}
