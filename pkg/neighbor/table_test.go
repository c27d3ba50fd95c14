package neighbor

import (
	"testing"
	"time"
)

func TestObserveInsertsOnFirstSight(t *testing.T) {
	tbl := New(time.Minute)
	eui := [8]byte{1}
	if _, ok := tbl.Lookup(eui); ok {
		t.Fatalf("expected absent before first observation")
	}
	tbl.Observe(eui, RoleFFN)
	e, ok := tbl.Lookup(eui)
	if !ok {
		t.Fatalf("expected present after Observe")
	}
	if e.Role != RoleFFN {
		t.Fatalf("Role = %v, want RoleFFN", e.Role)
	}
}

func TestLookupAbsentDoesNotPanic(t *testing.T) {
	tbl := New(time.Minute)
	if _, ok := tbl.Lookup([8]byte{9, 9}); ok {
		t.Fatalf("expected absent for never-seen peer")
	}
}

func TestExpiryOnInactivity(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	tbl := newWithClock(10*time.Second, func() time.Time { return cur })

	eui := [8]byte{2}
	tbl.Observe(eui, RoleLFN)

	cur = base.Add(5 * time.Second)
	if _, ok := tbl.Lookup(eui); !ok {
		t.Fatalf("expected still present within TTL")
	}

	cur = base.Add(11 * time.Second)
	if _, ok := tbl.Lookup(eui); ok {
		t.Fatalf("expected expired past TTL")
	}
}

func TestExpireStaleReturnsAndRemovesExpired(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	tbl := newWithClock(10*time.Second, func() time.Time { return cur })

	stale := [8]byte{3}
	fresh := [8]byte{4}
	tbl.Observe(stale, RoleFFN)

	cur = base.Add(5 * time.Second)
	tbl.Observe(fresh, RoleFFN)

	cur = base.Add(11 * time.Second)
	expired := tbl.ExpireStale()
	if len(expired) != 1 || expired[0] != stale {
		t.Fatalf("expired = %v, want [%v]", expired, stale)
	}
	if _, ok := tbl.Lookup(fresh); !ok {
		t.Fatalf("fresh entry should survive ExpireStale")
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
}

func TestRemoveIsUnconditional(t *testing.T) {
	tbl := New(0)
	eui := [8]byte{5}
	tbl.Observe(eui, RoleRouter)
	tbl.Remove(eui)
	if _, ok := tbl.Lookup(eui); ok {
		t.Fatalf("expected removed")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	tbl := newWithClock(0, func() time.Time { return cur })
	eui := [8]byte{6}
	tbl.Observe(eui, RoleHost)

	cur = base.Add(365 * 24 * time.Hour)
	if _, ok := tbl.Lookup(eui); !ok {
		t.Fatalf("expected zero-TTL table to never expire")
	}
}

func TestFrameCounterFreshness(t *testing.T) {
	tbl := New(time.Minute)
	e := tbl.Observe([8]byte{7}, RoleFFN)

	if !e.FrameCounterFresh(0, 5) {
		t.Fatalf("expected fresh when no floor recorded yet")
	}

	e.SetFrameCounterFloor(0, 10)
	if e.FrameCounterFresh(0, 10) {
		t.Fatalf("counter equal to floor must not be fresh")
	}
	if e.FrameCounterFresh(0, 9) {
		t.Fatalf("counter below floor must not be fresh")
	}
	if !e.FrameCounterFresh(0, 11) {
		t.Fatalf("counter above floor must be fresh")
	}
	// A different key index has its own independent floor.
	if !e.FrameCounterFresh(1, 1) {
		t.Fatalf("expected fresh for untouched key index")
	}
}
