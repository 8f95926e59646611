package rate

import (
	"testing"
	"time"
)

func TestFixedWindow(t *testing.T) {
	m := NewMemory()
	start := time.Now()
	m.now = func() time.Time { return start }

	for i := 0; i < 3; i++ {
		if ok, _ := m.Allow("k", 3, time.Minute); !ok {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	ok, retry := m.Allow("k", 3, time.Minute)
	if ok {
		t.Fatalf("fourth event should be limited")
	}
	if retry != time.Minute {
		t.Fatalf("expected retry after a minute, got %v", retry)
	}
	if ok, _ := m.Allow("other", 3, time.Minute); !ok {
		t.Fatalf("keys must not share a bucket")
	}

	m.now = func() time.Time { return start.Add(time.Minute) }
	if ok, _ := m.Allow("k", 3, time.Minute); !ok {
		t.Fatalf("window should have reset")
	}
}

func TestZeroLimitDisables(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 100; i++ {
		if ok, _ := m.Allow("k", 0, time.Minute); !ok {
			t.Fatalf("zero limit should not block")
		}
	}
}

func TestSweep(t *testing.T) {
	m := NewMemory()
	start := time.Now()
	m.now = func() time.Time { return start }
	m.Allow("a", 1, time.Second)
	m.Allow("b", 1, time.Hour)

	m.now = func() time.Time { return start.Add(2 * time.Second) }
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected one expired bucket, got %d", n)
	}
	if _, ok := m.buckets["b"]; !ok {
		t.Fatalf("live bucket swept")
	}
}

func TestKey(t *testing.T) {
	if got := Key("vote", "user", "abc"); got != "vote:user:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}
