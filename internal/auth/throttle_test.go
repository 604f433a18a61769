package auth

import (
	"testing"
	"time"
)

func TestFailedLoginTrackerLocksOutAfterMaxTries(t *testing.T) {
	tr := NewFailedLoginTracker(3, time.Minute)

	if !tr.Allowed("alice") {
		t.Fatal("alice should be allowed before any failures")
	}
	for i := 0; i < 3; i++ {
		tr.RecordFailure("alice")
	}
	if tr.Allowed("alice") {
		t.Fatal("alice should be locked out after reaching maxTries")
	}
	if !tr.Allowed("bob") {
		t.Fatal("bob's attempts must not be affected by alice's lockout")
	}
}

func TestFailedLoginTrackerRecordSuccessClearsFailures(t *testing.T) {
	tr := NewFailedLoginTracker(2, time.Minute)
	tr.RecordFailure("carol")
	tr.RecordSuccess("carol")
	tr.RecordFailure("carol")
	if !tr.Allowed("carol") {
		t.Fatal("a single failure after RecordSuccess reset should not lock out carol")
	}
}

func TestFailedLoginTrackerLockoutExpires(t *testing.T) {
	tr := NewFailedLoginTracker(1, time.Millisecond)
	tr.RecordFailure("dave")
	if tr.Allowed("dave") {
		t.Fatal("dave should be locked out immediately after the failure")
	}
	time.Sleep(5 * time.Millisecond)
	if !tr.Allowed("dave") {
		t.Fatal("lockout should have expired")
	}
}
