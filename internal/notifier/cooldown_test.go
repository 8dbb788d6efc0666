package notifier

import (
	"testing"
	"time"
)

func TestCooldownLimiter(t *testing.T) {
	now := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	lim := NewCooldownLimiter(10 * time.Second)
	lim.now = func() time.Time { return now }

	if !lim.Allow("u1", "!prices") {
		t.Fatal("first invocation must be allowed")
	}
	if lim.Allow("u1", "!prices") {
		t.Error("second invocation inside the window must be denied")
	}
	if !lim.Allow("u1", "!today") {
		t.Error("a different command has its own bucket")
	}
	if !lim.Allow("u2", "!prices") {
		t.Error("a different user has their own bucket")
	}

	now = now.Add(10 * time.Second)
	if !lim.Allow("u1", "!prices") {
		t.Error("invocation after the window must be allowed")
	}
}

func TestCooldownLimiter_PrunesExpiredEntries(t *testing.T) {
	now := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	lim := NewCooldownLimiter(10 * time.Second)
	lim.now = func() time.Time { return now }

	for _, user := range []string{"u1", "u2", "u3"} {
		lim.Allow(user, "!prices")
	}
	if len(lim.last) != 3 {
		t.Fatalf("tracked %d buckets, want 3", len(lim.last))
	}

	now = now.Add(11 * time.Second)
	lim.Allow("u4", "!prices")
	if len(lim.last) != 1 {
		t.Errorf("tracked %d buckets after expiry sweep, want 1", len(lim.last))
	}
}

func TestAllowAll(t *testing.T) {
	var lim Limiter = AllowAll{}
	for i := 0; i < 3; i++ {
		if !lim.Allow("u", "!x") {
			t.Fatal("AllowAll denied")
		}
	}
}
