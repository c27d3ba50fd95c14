package timer

import (
	"testing"
	"time"
)

func TestStartRelFiresAfterDeadline(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	g := newGroupWithClock(func() time.Time { return cur })

	g.StartRel("a", 5*time.Second)
	if fired := g.Expired(); len(fired) != 0 {
		t.Fatalf("should not fire before deadline, got %v", fired)
	}

	cur = base.Add(5 * time.Second)
	fired := g.Expired()
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("expected [a] to fire, got %v", fired)
	}

	if fired := g.Expired(); len(fired) != 0 {
		t.Fatalf("should not fire twice, got %v", fired)
	}
}

func TestStopPreventsLaterFire(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	g := newGroupWithClock(func() time.Time { return cur })

	g.StartRel("a", 1*time.Second)
	g.Stop("a")
	cur = base.Add(10 * time.Second)

	if fired := g.Expired(); len(fired) != 0 {
		t.Fatalf("stopped timer must never fire, got %v", fired)
	}
	if g.Pending("a") {
		t.Fatalf("expected no pending entry for stopped key")
	}
}

func TestStartRelReplacesPriorDeadline(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	g := newGroupWithClock(func() time.Time { return cur })

	g.StartRel("a", 1*time.Second)
	g.StartRel("a", 10*time.Second)

	cur = base.Add(1 * time.Second)
	if fired := g.Expired(); len(fired) != 0 {
		t.Fatalf("old deadline must not fire after reschedule, got %v", fired)
	}

	cur = base.Add(10 * time.Second)
	fired := g.Expired()
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("expected rescheduled deadline to fire once, got %v", fired)
	}
}

func TestExpiredOrdersEarliestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	g := newGroupWithClock(func() time.Time { return cur })

	g.StartRel("late", 10*time.Second)
	g.StartRel("early", 2*time.Second)
	g.StartRel("mid", 5*time.Second)

	cur = base.Add(20 * time.Second)
	fired := g.Expired()
	want := []Timer{"early", "mid", "late"}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired[%d] = %v, want %v", i, fired[i], want[i])
		}
	}
}

func TestNextDeadlineReflectsEarliestPending(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	g := newGroupWithClock(func() time.Time { return cur })

	if _, ok := g.NextDeadline(); ok {
		t.Fatalf("expected no deadline on empty group")
	}

	g.StartRel("a", 10*time.Second)
	g.StartRel("b", 3*time.Second)

	d, ok := g.NextDeadline()
	if !ok {
		t.Fatalf("expected a deadline")
	}
	if !d.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("NextDeadline = %v, want %v", d, base.Add(3*time.Second))
	}
}

func TestChanWakesOnStartRel(t *testing.T) {
	g := NewGroup()
	g.StartRel("a", time.Millisecond)
	select {
	case <-g.Chan():
	default:
		t.Fatalf("expected Chan() to have a pending wake after StartRel")
	}
}
