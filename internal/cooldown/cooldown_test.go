package cooldown

import (
	"testing"
	"time"
)

func TestReadyUnknownKeyIsReady(t *testing.T) {
	r := New()
	allowed, remaining := r.Ready(Key{PolicyName: "p", Target: "t"}, time.Minute)
	if !allowed {
		t.Error("unknown key must be ready")
	}
	if remaining != 0 {
		t.Errorf("remaining = %v, want 0", remaining)
	}
}

func TestMarkThenReadyWithinCooldown(t *testing.T) {
	r := New()
	key := Key{PolicyName: "high-cpu", Target: "svc-1"}

	if !r.Mark(key, time.Minute) {
		t.Fatal("first mark should succeed")
	}
	allowed, remaining := r.Ready(key, time.Minute)
	if allowed {
		t.Error("expected not ready immediately after mark")
	}
	if remaining <= 0 || remaining > time.Minute {
		t.Errorf("remaining = %v, want in (0, 1m]", remaining)
	}
}

func TestMarkRejectsWithinCooldown(t *testing.T) {
	r := New()
	key := Key{PolicyName: "p", Target: "t"}
	if !r.Mark(key, time.Hour) {
		t.Fatal("first mark should succeed")
	}
	if r.Mark(key, time.Hour) {
		t.Error("second mark within cooldown should be rejected")
	}
}

func TestMarkSucceedsAfterCooldownElapses(t *testing.T) {
	r := New()
	key := Key{PolicyName: "p", Target: "t"}
	if !r.Mark(key, time.Millisecond) {
		t.Fatal("first mark should succeed")
	}
	time.Sleep(5 * time.Millisecond)
	if !r.Mark(key, time.Millisecond) {
		t.Error("mark after cooldown elapses should succeed")
	}
}

func TestZeroCooldownAlwaysAllows(t *testing.T) {
	r := New()
	key := Key{PolicyName: "p", Target: "t"}
	for i := 0; i < 3; i++ {
		if !r.Mark(key, 0) {
			t.Errorf("iteration %d: zero cooldown should always allow", i)
		}
	}
}

func TestEvictRemovesStaleEntriesOnly(t *testing.T) {
	r := New()
	stale := Key{PolicyName: "p", Target: "stale"}
	fresh := Key{PolicyName: "p", Target: "fresh"}

	r.Mark(stale, 0)
	time.Sleep(10 * time.Millisecond)
	r.Mark(fresh, 0)

	removed := r.Evict(5 * time.Millisecond)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	allowed, _ := r.Ready(stale, time.Hour)
	if !allowed {
		t.Error("evicted key must read back as ready, never a false positive")
	}
}

func TestDistinctTargetsAreIndependent(t *testing.T) {
	r := New()
	a := Key{PolicyName: "p", Target: "a"}
	b := Key{PolicyName: "p", Target: "b"}
	if !r.Mark(a, time.Hour) {
		t.Fatal("mark a should succeed")
	}
	if !r.Mark(b, time.Hour) {
		t.Error("mark b should succeed independently of a")
	}
}
